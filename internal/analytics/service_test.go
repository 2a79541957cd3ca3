package analytics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/angelmondragon/gearshare-backend/internal/analytics/types"
)

type fakeBookingQuery struct {
	lastReq  types.BookingQueryRequest
	calls    int
	response *types.BookingQueryResponse
	err      error
}

func (f *fakeBookingQuery) Query(_ context.Context, req types.BookingQueryRequest) (*types.BookingQueryResponse, error) {
	f.calls++
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	if f.response == nil {
		f.response = &types.BookingQueryResponse{}
	}
	return f.response, nil
}

func TestServiceQueryForwardsRequest(t *testing.T) {
	fake := &fakeBookingQuery{}
	srv := &service{bookings: fake}
	now := time.Now().UTC()
	req := types.BookingQueryRequest{OwnerID: "owner-1", Start: now.Add(-48 * time.Hour), End: now}

	resp, err := srv.Query(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp != fake.response {
		t.Fatal("expected response to be forwarded")
	}
	if fake.lastReq.OwnerID != "owner-1" || !fake.lastReq.Start.Equal(req.Start) {
		t.Fatalf("unexpected forwarded request %+v", fake.lastReq)
	}
}

func TestServiceQueryRejectsInvertedWindow(t *testing.T) {
	fake := &fakeBookingQuery{}
	srv := &service{bookings: fake}
	now := time.Now().UTC()

	if _, err := srv.Query(context.Background(), types.BookingQueryRequest{Start: now, End: now.Add(-time.Hour)}); err == nil {
		t.Fatal("expected inverted window to fail")
	}
	if fake.calls != 0 {
		t.Fatal("query must not run for an inverted window")
	}
}

func TestServiceQueryPropagatesError(t *testing.T) {
	want := errors.New("query failed")
	srv := &service{bookings: &fakeBookingQuery{err: want}}
	now := time.Now().UTC()

	resp, err := srv.Query(context.Background(), types.BookingQueryRequest{Start: now, End: now.Add(time.Minute)})
	if !errors.Is(err, want) || resp != nil {
		t.Fatalf("expected %v, got %v (%v)", want, err, resp)
	}
}
