package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/okian/painpoint/internal/domain/model"
	"github.com/okian/painpoint/internal/scan"
	. "github.com/smartystreets/goconvey/convey"
)

type fakeTriggerer struct {
	err    error
	calls  int
	caller scan.Caller
	req    scan.TriggerRequest
}

func (f *fakeTriggerer) Trigger(_ context.Context, c scan.Caller, r scan.TriggerRequest) (model.Snapshot, error) {
	f.calls++
	f.caller = c
	f.req = r
	if f.err != nil {
		return model.Snapshot{}, f.err
	}
	return model.Snapshot{ID: "s1", Status: model.ScanPending}, nil
}

type fakeSweeper struct {
	reviewCalls   int
	progressCalls int
	err           error
}

func (f *fakeSweeper) ExpireReview(context.Context) (int, error) {
	f.reviewCalls++
	return 3, f.err
}

func (f *fakeSweeper) SweepProgress() int {
	f.progressCalls++
	return 1
}

func TestScheduler(t *testing.T) {
	Convey("Given a scheduler", t, func() {
		tr := &fakeTriggerer{}
		sw := &fakeSweeper{}

		Convey("When the scan spec is invalid", func() {
			_, err := New("every now and then", tr, sw)
			So(err, ShouldNotBeNil)
		})

		Convey("When the scan spec is empty only the sweep is registered", func() {
			s, err := New("", tr, sw)
			So(err, ShouldBeNil)
			So(s.cron.Entries(), ShouldHaveLength, 1)
		})

		Convey("When both jobs are registered", func() {
			s, err := New("@every 6h", tr, sw, WithSweepSpec("@hourly"))
			So(err, ShouldBeNil)
			So(s.cron.Entries(), ShouldHaveLength, 2)

			Convey("Then the scan job triggers as the system principal", func() {
				s.RunScan()
				So(tr.calls, ShouldEqual, 1)
				So(tr.caller.IsAdmin(), ShouldBeTrue)
				So(tr.req.Origin, ShouldEqual, scan.OriginScheduler)
				So(tr.req.Sources, ShouldBeEmpty)
			})

			Convey("Then a scan in progress is tolerated", func() {
				tr.err = scan.ErrScanInProgress
				So(func() { s.RunScan() }, ShouldNotPanic)
				So(tr.calls, ShouldEqual, 1)
			})

			Convey("Then the sweep touches both stores even when review fails", func() {
				sw.err = errors.New("db down")
				s.RunSweep()
				So(sw.reviewCalls, ShouldEqual, 1)
				So(sw.progressCalls, ShouldEqual, 1)
			})

			Convey("Then it starts and stops cleanly", func() {
				s.Start()
				ctx, cancel := context.WithTimeout(context.Background(), time.Second)
				defer cancel()
				s.Stop(ctx)
				So(ctx.Err(), ShouldBeNil)
			})
		})
	})
}
