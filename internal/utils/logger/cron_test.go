package logger

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap/zapcore"
)

var _ = Describe("CronLogger", func() {
	It("logs scheduler info at debug level with key value fields", func() {
		l, logs := observedLogger(zapcore.DebugLevel)

		l.CronLogger().Info("wake", "now", "2025-01-01", "entry", 2)

		Expect(logs.Len()).To(Equal(1))
		entry := logs.All()[0]
		Expect(entry.Level).To(Equal(zapcore.DebugLevel))
		Expect(entry.Message).To(Equal("[Cron] wake"))
		Expect(entry.ContextMap()).To(HaveKeyWithValue("entry", "2"))
	})

	It("logs errors with the error field", func() {
		l, logs := observedLogger(zapcore.InfoLevel)

		l.CronLogger().Error(errors.New("boom"), "panic", "job", "reconcile_evm", "dangling")

		Expect(logs.Len()).To(Equal(1))
		entry := logs.All()[0]
		Expect(entry.Level).To(Equal(zapcore.ErrorLevel))
		Expect(entry.ContextMap()).To(HaveKeyWithValue("error", "boom"))
		Expect(entry.ContextMap()).To(HaveKeyWithValue("job", "reconcile_evm"))
		Expect(entry.ContextMap()).NotTo(HaveKey("dangling"))
	})
})
