package main

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/okian/roster/internal/config"
	"github.com/okian/roster/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("ROSTER_SOURCE_BASE_URL", "https://members.example.org")
	t.Setenv("ROSTER_SOURCE_TOKEN_URL", "https://members.example.org/oauth/token")
	t.Setenv("ROSTER_SOURCE_CLIENT_ID", "client-id")
	t.Setenv("ROSTER_SOURCE_CLIENT_SECRET", "client-secret")
	t.Setenv("ROSTER_TARGET_BASE_URL", "https://api.target.example.org")
	t.Setenv("ROSTER_TARGET_ACCESS_TOKEN", "tok-t")
}

func TestRunWiring(t *testing.T) {
	convey.Convey("Given a complete configuration", t, func() {
		_ = logger.Init()
		setRequiredEnv(t)

		dir := t.TempDir()
		t.Setenv("ROSTER_MAPPING_DB_PATH", filepath.Join(dir, "mappings.db"))
		t.Setenv("ROSTER_TOKEN_CACHE_DIR", filepath.Join(dir, "tokens"))

		convey.Convey("When the config loads", func() {
			cfg, err := config.Load(context.Background())

			convey.Convey("Then it carries both platform credentials", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.SourceClientID, convey.ShouldEqual, "client-id")
				convey.So(cfg.TargetAccessToken, convey.ShouldEqual, "tok-t")
			})
		})

		convey.Convey("When the target token deadline is malformed", func() {
			t.Setenv("ROSTER_TARGET_TOKEN_EXPIRES_AT", "yesterday")

			err := run(context.Background())

			convey.Convey("Then the run fails before touching either platform", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})
	})
}
