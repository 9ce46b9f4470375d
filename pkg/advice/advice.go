// Package advice answers free-text finance questions from a dashboard snapshot.
//
// Questions are matched against a single rule table in a fixed priority
// order; the first rule whose keywords appear in the question produces the
// answer. No language model is involved.
package advice

import (
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/ArionMiles/financehub/pkg/engine"
)

// Topic identifies the rule that answered a question.
type Topic string

// Topics in evaluation order.
const (
	TopicCreditScore Topic = "credit_score"
	TopicBudget      Topic = "budget"
	TopicSaving      Topic = "saving"
	TopicInvesting   Topic = "investing"
	TopicDebt        Topic = "debt"
	TopicEmergency   Topic = "emergency_fund"
	TopicRetirement  Topic = "retirement"
	TopicTax         Topic = "tax"
	TopicHome        Topic = "home_buying"
	TopicSideIncome  Topic = "side_income"
	TopicInsurance   Topic = "insurance"
	TopicGoals       Topic = "goals"
	TopicCrypto      Topic = "crypto"
	TopicEducation   Topic = "education"
	TopicGeneral     Topic = "general"
)

// Recommendation is a labelled figure supporting an answer.
type Recommendation struct {
	Label string          `json:"label"`
	Value decimal.Decimal `json:"value"`
}

// Response is the answer to one question.
type Response struct {
	Topic           Topic            `json:"topic"`
	Advice          string           `json:"advice"`
	Recommendations []Recommendation `json:"recommendations"`
}

// facts are the figures every template draws from.
type facts struct {
	income  decimal.Decimal
	expense decimal.Decimal
	savings decimal.Decimal
	balance decimal.Decimal
	rate    float64
	p       *message.Printer
}

func (f facts) money(d decimal.Decimal) string {
	return f.p.Sprintf("$%.2f", d.InexactFloat64())
}

func (f facts) percent(v float64) string {
	return f.p.Sprintf("%.2f%%", v)
}

type rule struct {
	topic    Topic
	keywords []string
	respond  func(f facts) Response
}

// matches reports whether any keyword occurs in the normalized question.
// Single words match as a prefix of a word; phrases match anywhere on word
// boundaries.
func (r rule) matches(normalized string) bool {
	for _, kw := range r.keywords {
		if strings.Contains(normalized, " "+kw) {
			return true
		}
	}
	return false
}

// rules is evaluated top to bottom. "credit score" sits above "debt" so that
// credit score questions mentioning a credit card are not routed to debt.
var rules = []rule{
	{TopicCreditScore, []string{"credit score", "credit report"}, creditScore},
	{TopicBudget, []string{"budget", "spending", "spend "}, budget},
	{TopicSaving, []string{"save", "saving"}, saving},
	{TopicInvesting, []string{"invest", "stock", "etf"}, investing},
	{TopicDebt, []string{"debt", "loan", "credit card"}, debt},
	{TopicEmergency, []string{"emergency", "fund"}, emergency},
	{TopicRetirement, []string{"retire", "401k", "ira ", "roth"}, retirement},
	{TopicTax, []string{"tax", "deduction", "write off"}, tax},
	{TopicHome, []string{"house", "home", "mortgage", "buy"}, home},
	{TopicSideIncome, []string{"side hustle", "extra income", "make more"}, sideIncome},
	{TopicInsurance, []string{"insurance", "disability"}, insurance},
	{TopicGoals, []string{"goal", "plan", "strategy"}, goals},
	{TopicCrypto, []string{"crypto", "bitcoin", "ethereum"}, crypto},
	{TopicEducation, []string{"learn", "book", "educate", "course"}, education},
}

// Normalize lowercases q and collapses everything that is not a letter or
// digit into single spaces. The result starts and ends with a space.
func Normalize(q string) string {
	var b strings.Builder
	b.WriteByte(' ')
	space := true
	for _, r := range strings.ToLower(q) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			space = false
			continue
		}
		if !space {
			b.WriteByte(' ')
			space = true
		}
	}
	if !space {
		b.WriteByte(' ')
	}
	return b.String()
}

// Classify returns the topic that would answer question.
func Classify(question string) Topic {
	normalized := Normalize(question)
	for _, r := range rules {
		if r.matches(normalized) {
			return r.topic
		}
	}
	return TopicGeneral
}

// Respond answers question using the figures of view.
func Respond(question string, view engine.DashboardView) Response {
	f := facts{
		income:  view.MonthlyIncome,
		expense: view.MonthlyExpense,
		savings: view.MonthlyIncome.Sub(view.MonthlyExpense),
		balance: view.TotalBalance,
		rate:    view.SavingsRate,
		p:       message.NewPrinter(language.English),
	}

	normalized := Normalize(question)
	for _, r := range rules {
		if r.matches(normalized) {
			return r.respond(f)
		}
	}
	return general(f)
}
