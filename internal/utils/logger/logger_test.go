package logger

import (
	"bytes"
	"sort"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/dwarvesf/onchain-tracker/internal/types/environments"
)

type fatalHook struct {
	called bool
}

func (h *fatalHook) OnWrite(_ *zapcore.CheckedEntry, _ []zapcore.Field) {
	h.called = true
}

func observedLogger(level zapcore.Level) (*Logger, *observer.ObservedLogs) {
	core, logs := observer.New(level)
	return &Logger{wrappedLogger: zap.New(core)}, logs
}

var _ = Describe("Logger", func() {
	Describe("#New", func() {
		DescribeTable("builds a logger for every environment",
			func(env environments.Environment) {
				l := New(env)
				Expect(l).NotTo(BeNil())
				Expect(l.wrappedLogger).NotTo(BeNil())
			},
			Entry("production", environments.Production),
			Entry("staging", environments.Staging),
			Entry("development", environments.Development),
			Entry("test", environments.Test),
		)

		It("falls back to production settings for an unknown environment", func() {
			l := New(environments.Environment("unknown"))
			core := l.wrappedLogger.Core()
			Expect(core.Enabled(zapcore.InfoLevel)).To(BeTrue())
			Expect(core.Enabled(zapcore.DebugLevel)).To(BeFalse())
		})
	})

	Describe("levels", func() {
		It("writes each level with the given fields", func() {
			l, logs := observedLogger(zapcore.DebugLevel)

			l.Debug("debug message", map[string]string{"key": "d"})
			l.Info("info message", map[string]string{"key": "i"})
			l.Warn("warn message", map[string]string{"key": "w"})
			l.Error("error message", map[string]string{"key": "e"})

			entries := logs.All()
			Expect(entries).To(HaveLen(4))
			Expect(entries[0].Level).To(Equal(zapcore.DebugLevel))
			Expect(entries[2].Level).To(Equal(zapcore.WarnLevel))
			Expect(entries[3].ContextMap()).To(HaveKeyWithValue("key", "e"))
		})

		It("accepts a message without fields", func() {
			l, logs := observedLogger(zapcore.InfoLevel)
			l.Info("[Reconciler][Tick] done")
			Expect(logs.FilterMessage("[Reconciler][Tick] done").Len()).To(Equal(1))
		})
	})

	Describe("#With", func() {
		It("attaches fields to every entry of the child logger", func() {
			l, logs := observedLogger(zapcore.InfoLevel)
			child := l.With(map[string]string{"network": "evm"})

			child.Info("tick", map[string]string{"address": "0xabc"})

			Expect(logs.All()).To(HaveLen(1))
			ctx := logs.All()[0].ContextMap()
			Expect(ctx).To(HaveKeyWithValue("network", "evm"))
			Expect(ctx).To(HaveKeyWithValue("address", "0xabc"))
		})
	})

	Describe("#Fatal", func() {
		It("invokes the fatal hook", func() {
			hook := &fatalHook{}
			l := &Logger{wrappedLogger: zap.New(
				zapcore.NewCore(
					zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()),
					zapcore.AddSync(&bytes.Buffer{}),
					zap.FatalLevel,
				),
				zap.WithFatalHook(hook),
			)}

			l.Fatal("fatal message", map[string]string{"key": "value"})
			Expect(hook.called).To(BeTrue())
		})
	})

	Describe("#transformStrMapToFields", func() {
		It("transforms a string map to zap fields", func() {
			fields := transformStrMapToFields(map[string]string{
				"key1": "value1",
				"key2": "value2",
			})

			sort.Slice(fields, func(i, j int) bool {
				return fields[i].Key < fields[j].Key
			})

			Expect(fields).To(HaveLen(2))
			Expect(fields[0]).To(Equal(zap.String("key1", "value1")))
			Expect(fields[1]).To(Equal(zap.String("key2", "value2")))
		})

		It("returns an empty slice for an empty map", func() {
			Expect(transformStrMapToFields(map[string]string{})).To(BeEmpty())
		})
	})
})
