package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestInMemoryQueue(t *testing.T) {
	Convey("Given a queue with capacity 2", t, func() {
		ctx := context.Background()
		q := NewInMemoryQueue(WithCapacity(2))

		Convey("When it is empty", func() {
			So(q.Len(), ShouldEqual, 0)
			So(q.IsClosed(), ShouldBeFalse)
		})

		Convey("When requests are enqueued", func() {
			So(q.Enqueue(ctx, Request{ScanID: "a"}), ShouldBeNil)
			So(q.Enqueue(ctx, Request{ScanID: "b"}), ShouldBeNil)

			Convey("Then they come out in order", func() {
				So(q.Len(), ShouldEqual, 2)
				So((<-q.Dequeue()).ScanID, ShouldEqual, "a")
				So((<-q.Dequeue()).ScanID, ShouldEqual, "b")
				So(q.Len(), ShouldEqual, 0)
			})

			Convey("Then a third is rejected without blocking", func() {
				err := q.Enqueue(ctx, Request{ScanID: "c"})
				So(errors.Is(err, ErrFull), ShouldBeTrue)
			})
		})

		Convey("When the context is already cancelled", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			So(errors.Is(q.Enqueue(cctx, Request{ScanID: "a"}), context.Canceled), ShouldBeTrue)
			So(q.Len(), ShouldEqual, 0)
		})

		Convey("When the queue is closed", func() {
			So(q.Enqueue(ctx, Request{ScanID: "a"}), ShouldBeNil)
			So(q.Close(), ShouldBeNil)
			So(q.Close(), ShouldBeNil)

			Convey("Then enqueue fails and buffered requests drain before the channel closes", func() {
				So(errors.Is(q.Enqueue(ctx, Request{ScanID: "b"}), ErrClosed), ShouldBeTrue)

				var drained []string
				timeout := time.After(time.Second)
			loop:
				for {
					select {
					case r, ok := <-q.Dequeue():
						if !ok {
							break loop
						}
						drained = append(drained, r.ScanID)
					case <-timeout:
						break loop
					}
				}
				So(drained, ShouldResemble, []string{"a"})
			})
		})
	})
}
