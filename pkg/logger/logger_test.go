package logger

import (
	"context"
	"errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestLoggerInit(t *testing.T) {
	Convey("Given the global logger", t, func() {
		Convey("When initialized with JSON output", func() {
			So(Init(), ShouldBeNil)

			Convey("Then Get returns a usable logger", func() {
				l := Get()
				So(l, ShouldNotBeNil)
				l.Info(context.Background(), "test message", String("k", "v"), Int("n", 1))
				So(Sync(), ShouldBeNil)
			})
		})

		Convey("When initialized with console output", func() {
			So(InitWithFormat(FormatConsole), ShouldBeNil)

			Convey("Then named loggers can be derived", func() {
				named := Named("test")
				So(named, ShouldNotBeNil)
				named.Warn(context.Background(), "named message", Error(errors.New("boom")))
			})
		})
	})
}

func TestSetLevelString(t *testing.T) {
	Convey("Given level strings", t, func() {
		So(SetLevelString("debug"), ShouldBeNil)
		So(level.Level().String(), ShouldEqual, "debug")

		So(SetLevelString("WARNING"), ShouldBeNil)
		So(level.Level().String(), ShouldEqual, "warn")

		So(SetLevelString(""), ShouldBeNil)
		So(level.Level().String(), ShouldEqual, "info")

		So(SetLevelString("loud"), ShouldNotBeNil)
		So(level.Level().String(), ShouldEqual, "info")
	})
}

func TestNop(t *testing.T) {
	Convey("Nop logger swallows every call", t, func() {
		l := Nop()
		l.Debug(context.Background(), "ignored", Bool("b", true), Float64("f", 1.5), Any("a", []int{1}))
		So(l.Named("child"), ShouldNotBeNil)
	})
}
