package logger

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type expectedConfig struct {
	level             zapcore.Level
	development       bool
	disableCaller     bool
	disableStacktrace bool
	encoding          string
	stdout            bool
}

var _ = Describe("Logger Environment", func() {
	DescribeTable("environment specific configuration",
		func(build func() zap.Config, want expectedConfig) {
			cfg := build()

			Expect(cfg.Level.Level()).To(Equal(want.level))
			Expect(cfg.Development).To(Equal(want.development))
			Expect(cfg.DisableCaller).To(Equal(want.disableCaller))
			Expect(cfg.DisableStacktrace).To(Equal(want.disableStacktrace))
			Expect(cfg.Encoding).To(Equal(want.encoding))
			if want.stdout {
				Expect(cfg.OutputPaths).To(Equal([]string{"stdout"}))
				Expect(cfg.ErrorOutputPaths).To(Equal([]string{"stderr"}))
			} else {
				Expect(cfg.OutputPaths).To(BeEmpty())
				Expect(cfg.ErrorOutputPaths).To(BeEmpty())
			}
		},
		Entry("production", newProductionLoggerConfig, expectedConfig{
			level: zap.InfoLevel, encoding: "json", stdout: true,
		}),
		Entry("staging", newStagingLoggerConfig, expectedConfig{
			level: zap.InfoLevel, disableCaller: true, disableStacktrace: true, encoding: "json", stdout: true,
		}),
		Entry("development", newDevelopmentLoggerConfig, expectedConfig{
			level: zap.DebugLevel, development: true, disableCaller: true, disableStacktrace: true, encoding: "console", stdout: true,
		}),
		Entry("test", newTestLoggerConfig, expectedConfig{
			level: zap.InfoLevel, encoding: "json",
		}),
	)

	It("uses ISO8601 timestamps under the timestamp key for json output", func() {
		cfg := newProductionLoggerConfig()
		Expect(cfg.EncoderConfig.TimeKey).To(Equal("timestamp"))
		Expect(cfg.EncoderConfig.EncodeTime).NotTo(BeNil())
	})
})
