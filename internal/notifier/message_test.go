package notifier

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/dwarvesf/onchain-tracker/internal/model"
)

var _ = Describe("FormatMessage", func() {
	It("renders an EVM transfer", func() {
		msg := FormatMessage(model.Transaction{
			Hash:        "0xfeed",
			Network:     model.NetworkEVM,
			FromAddress: "0x1111111111222222222233333333334444444444",
			ToAddress:   "0xabc",
			Value:       "1500000000000000000",
			Timestamp:   1700000000,
		})

		Expect(msg.Embeds).To(HaveLen(1))
		e := msg.Embeds[0]
		Expect(e.Title).To(Equal("🔵 New Transaction on BASE"))
		Expect(e.Color).To(Equal(5814783))
		Expect(e.Timestamp).To(Equal("2023-11-14T22:13:20Z"))
		Expect(e.Fields).To(HaveLen(4))
		Expect(e.Fields[0].Value).To(Equal("`0x11111111...44444444`"))
		Expect(e.Fields[1].Value).To(Equal("`0xabc`"))
		Expect(e.Fields[2].Value).To(Equal("1.500000 ETH"))
		Expect(e.Fields[3].Value).To(Equal("[View on Explorer](https://basescan.org/tx/0xfeed)"))
		Expect(e.Fields[3].Inline).To(BeFalse())
	})

	It("renders a non-EVM transfer with lamport decimals", func() {
		msg := FormatMessage(model.Transaction{
			Hash:      "5sig",
			Network:   model.NetworkNonEVM,
			Value:     "2500000000",
			Timestamp: 0,
		})

		e := msg.Embeds[0]
		Expect(e.Title).To(Equal("🟣 New Transaction on SOLANA"))
		Expect(e.Color).To(Equal(9055202))
		Expect(e.Fields[0].Value).To(Equal("`unknown`"))
		Expect(e.Fields[2].Value).To(Equal("2.500000 SOL"))
		Expect(e.Fields[3].Value).To(ContainSubstring("https://explorer.solana.com/tx/5sig"))
	})

	It("renders a token transfer in its own asset", func() {
		msg := FormatMessage(model.Transaction{
			Hash:         "0xbeef",
			Network:      model.NetworkEVM,
			Value:        "1000000",
			Asset:        "USDC",
			TokenAddress: "0x833589fcd6edb6e08f4c7c32d4f71b54bda02913",
			Decimals:     6,
		})

		Expect(msg.Embeds[0].Fields[2].Value).To(Equal("1.000000 USDC"))
	})

	It("renders a zero-decimal token without a fraction", func() {
		msg := FormatMessage(model.Transaction{
			Network:      model.NetworkEVM,
			Value:        "1",
			Asset:        "BAYC",
			TokenAddress: "0xbc4ca0eda7647a8ab7c2061c2e118a18a936f13d",
		})

		Expect(msg.Embeds[0].Fields[2].Value).To(Equal("1 BAYC"))
	})

	It("uses the record's decimals for the native asset", func() {
		msg := FormatMessage(model.Transaction{
			Network:  model.NetworkEVM,
			Value:    "2000000000000000000",
			Asset:    "ETH",
			Decimals: 18,
		})

		Expect(msg.Embeds[0].Fields[2].Value).To(Equal("2.000000 ETH"))
	})
})

var _ = Describe("IdempotencyKey", func() {
	It("is stable per network and hash", func() {
		evm := model.Transaction{Network: model.NetworkEVM, Hash: "h"}
		nonEVM := model.Transaction{Network: model.NetworkNonEVM, Hash: "h"}

		Expect(IdempotencyKey(evm)).To(Equal(IdempotencyKey(evm)))
		Expect(IdempotencyKey(evm)).NotTo(Equal(IdempotencyKey(nonEVM)))
		Expect(IdempotencyKey(evm)).To(HaveLen(36))
	})
})
