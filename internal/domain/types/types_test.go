package types_test

import (
	"testing"

	types "github.com/okian/painpoint/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

func TestPage(t *testing.T) {
	Convey("Given a page", t, func() {
		Convey("When created with nil items", func() {
			p := types.NewPage[string](nil, 0, 20, 0)

			Convey("Then items are an empty slice", func() {
				So(p.Items, ShouldNotBeNil)
				So(len(p.Items), ShouldEqual, 0)
				So(p.HasMore(), ShouldBeFalse)
			})
		})

		Convey("When more rows exist past the window", func() {
			p := types.NewPage([]int{1, 2}, 5, 2, 2)

			Convey("Then HasMore is true", func() {
				So(p.HasMore(), ShouldBeTrue)
				So(p.Total, ShouldEqual, 5)
			})
		})

		Convey("When on the last window", func() {
			p := types.NewPage([]int{5}, 5, 2, 4)
			So(p.HasMore(), ShouldBeFalse)
		})
	})
}

func TestClampLimit(t *testing.T) {
	Convey("Given requested limits", t, func() {
		So(types.ClampLimit(0, 20, 100), ShouldEqual, 20)
		So(types.ClampLimit(-5, 20, 100), ShouldEqual, 20)
		So(types.ClampLimit(500, 20, 100), ShouldEqual, 100)
		So(types.ClampLimit(30, 20, 100), ShouldEqual, 30)
	})
}
