package notifier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/dwarvesf/onchain-tracker/internal/model"
	"github.com/dwarvesf/onchain-tracker/internal/utils/config"
	"github.com/dwarvesf/onchain-tracker/internal/utils/logger"
)

type sink struct {
	mu       sync.Mutex
	status   int
	block    chan struct{}
	attempts int
	keys     []string
	messages []Message
}

func (s *sink) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.attempts++
	block := s.block
	s.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-r.Context().Done():
			return
		}
	}

	var msg Message
	_ = json.NewDecoder(r.Body).Decode(&msg)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != 0 {
		w.WriteHeader(s.status)
		return
	}
	s.keys = append(s.keys, r.Header.Get("X-Idempotency-Key"))
	s.messages = append(s.messages, msg)
}

func (s *sink) delivered() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

func (s *sink) attemptCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempts
}

func tx(hash string) model.Transaction {
	return model.Transaction{
		Hash:        hash,
		Network:     model.NetworkEVM,
		FromAddress: "0xfrom",
		ToAddress:   "0xto",
		Value:       "1",
		Status:      model.TransactionStatusConfirmed,
	}
}

var _ = Describe("Notifier", func() {
	var (
		s   *sink
		srv *httptest.Server
		cfg config.NotifierConfig
	)

	BeforeEach(func() {
		s = &sink{}
		srv = httptest.NewServer(s)
		cfg = config.NotifierConfig{
			WebhookURL: srv.URL,
			QueueSize:  8,
			MaxRetries: 2,
			RetryWait:  time.Millisecond,
			Timeout:    5 * time.Second,
		}
	})

	AfterEach(func() {
		s.mu.Lock()
		if s.block != nil {
			close(s.block)
			s.block = nil
		}
		s.mu.Unlock()
		srv.Close()
	})

	It("drops everything when no sink is configured", func() {
		cfg.WebhookURL = ""
		n := New(cfg, logger.New("test"), nil)

		Expect(n.Enabled()).To(BeFalse())
		Expect(n.Enqueue(tx("0x1"))).To(BeFalse())
	})

	It("never blocks when the queue is full", func() {
		cfg.QueueSize = 1
		n := New(cfg, logger.New("test"), nil)

		Expect(n.Enqueue(tx("0x1"))).To(BeTrue())

		start := time.Now()
		Expect(n.Enqueue(tx("0x2"))).To(BeFalse())
		Expect(time.Since(start)).To(BeNumerically("<", 50*time.Millisecond))
	})

	It("delivers queued notifications and drains on stop", func() {
		n := New(cfg, logger.New("test"), nil)
		n.Start(context.Background())

		for _, hash := range []string{"0x1", "0x2", "0x3"} {
			Expect(n.Enqueue(tx(hash))).To(BeTrue())
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		Expect(n.Stop(ctx)).To(Succeed())

		Expect(s.delivered()).To(Equal(3))
		Expect(s.keys).To(ConsistOf(IdempotencyKey(tx("0x1")), IdempotencyKey(tx("0x2")), IdempotencyKey(tx("0x3"))))
		Expect(s.messages[0].Embeds[0].Title).To(ContainSubstring("New Transaction on BASE"))
	})

	It("retries a failing sink a bounded number of times then drops", func() {
		s.status = http.StatusServiceUnavailable
		n := New(cfg, logger.New("test"), nil)
		n.Start(context.Background())

		Expect(n.Enqueue(tx("0x1"))).To(BeTrue())

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		Expect(n.Stop(ctx)).To(Succeed())

		Expect(s.attemptCount()).To(Equal(cfg.MaxRetries + 1))
		Expect(s.delivered()).To(BeZero())
	})

	It("gives up on the drain when the grace period expires", func() {
		s.block = make(chan struct{})
		n := New(cfg, logger.New("test"), nil)
		n.Start(context.Background())

		Expect(n.Enqueue(tx("0x1"))).To(BeTrue())
		Expect(n.Enqueue(tx("0x2"))).To(BeTrue())
		Eventually(s.attemptCount).Should(Equal(1))

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		start := time.Now()
		Expect(n.Stop(ctx)).To(MatchError(context.DeadlineExceeded))
		Expect(time.Since(start)).To(BeNumerically("<", 2*time.Second))
		Expect(s.delivered()).To(BeZero())
	})

	It("rejects notifications after stop", func() {
		n := New(cfg, logger.New("test"), nil)
		n.Start(context.Background())
		Expect(n.Stop(context.Background())).To(Succeed())

		Expect(n.Enqueue(tx("0x1"))).To(BeFalse())
	})
})
