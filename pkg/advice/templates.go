package advice

import (
	"strings"

	"github.com/shopspring/decimal"
)

func pct(n int64) decimal.Decimal {
	return decimal.New(n, -2)
}

func lines(parts ...string) string {
	return strings.Join(parts, "\n")
}

func positive(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d.Round(2)
}

func budget(f facts) Response {
	verdict := "below the recommended 20%"
	if f.rate >= 20 {
		verdict = "at or above the recommended 20%"
	}
	return Response{
		Topic: TopicBudget,
		Advice: lines(
			"You earn "+f.money(f.income)+" and spend "+f.money(f.expense)+" this month.",
			"Your savings rate of "+f.percent(f.rate)+" is "+verdict+".",
			"A 50/30/20 split keeps needs, wants and savings in proportion:",
			"• Track every expense for a month",
			"• Cancel subscriptions you no longer use",
			"• Renegotiate recurring bills",
		),
		Recommendations: []Recommendation{
			{Label: "Needs (50%)", Value: f.income.Mul(pct(50)).Round(2)},
			{Label: "Wants (30%)", Value: f.income.Mul(pct(30)).Round(2)},
			{Label: "Savings (20%)", Value: f.income.Mul(pct(20)).Round(2)},
		},
	}
}

func saving(f facts) Response {
	gap := positive(f.income.Mul(pct(20)).Sub(f.savings))
	next := "Automate the transfer on payday to keep it going."
	if f.rate < 20 {
		next = "Cutting " + f.money(gap) + " of monthly spending reaches a 20% savings rate."
	}
	return Response{
		Topic: TopicSaving,
		Advice: lines(
			"You are saving "+f.money(f.savings)+" a month, "+f.percent(f.rate)+" of income.",
			"Kept up for a year that is "+f.money(f.savings.Mul(decimal.NewFromInt(12)))+".",
			next,
		),
		Recommendations: []Recommendation{
			{Label: "Yearly savings at current rate", Value: f.savings.Mul(decimal.NewFromInt(12)).Round(2)},
			{Label: "Monthly gap to 20% rate", Value: gap},
		},
	}
}

func investing(f facts) Response {
	low := f.expense.Mul(decimal.NewFromInt(3)).Round(2)
	high := f.expense.Mul(decimal.NewFromInt(6)).Round(2)
	return Response{
		Topic: TopicInvesting,
		Advice: lines(
			"With "+f.money(f.balance)+" on hand and "+f.money(f.savings)+" saved each month:",
			"1. Hold an emergency fund of "+f.money(low)+" to "+f.money(high)+" first",
			"2. Fill tax-advantaged retirement accounts",
			"3. Prefer low-cost broad index funds",
			"4. Invest a fixed amount every month",
		),
		Recommendations: []Recommendation{
			{Label: "Emergency fund (3 months)", Value: low},
			{Label: "Emergency fund (6 months)", Value: high},
		},
	}
}

func debt(f facts) Response {
	return Response{
		Topic: TopicDebt,
		Advice: lines(
			"List every debt with its interest rate and pay the minimum on all of them.",
			"Put every extra dollar on the highest rate first, or on the smallest balance if quick wins keep you going.",
			"Your monthly surplus of "+f.money(f.savings)+" is what you can direct at it.",
		),
		Recommendations: []Recommendation{
			{Label: "Monthly surplus for repayment", Value: positive(f.savings)},
		},
	}
}

func emergency(f facts) Response {
	target := f.expense.Mul(decimal.NewFromInt(6)).Round(2)
	months := decimal.Zero
	if !f.expense.IsZero() {
		months = f.balance.Div(f.expense).Round(1)
	}
	status := "That is a solid cushion; surplus beyond it can be invested."
	if months.LessThan(decimal.NewFromInt(6)) {
		status = "Another " + f.money(positive(target.Sub(f.balance))) + " gets you to six months."
	}
	return Response{
		Topic: TopicEmergency,
		Advice: lines(
			"Your balance of "+f.money(f.balance)+" covers "+months.StringFixed(1)+" months of expenses.",
			status,
			"Keep the fund in a separate high-yield account and refill it after use.",
		),
		Recommendations: []Recommendation{
			{Label: "Months covered", Value: months},
			{Label: "Six-month target", Value: target},
			{Label: "Remaining to target", Value: positive(target.Sub(f.balance))},
		},
	}
}

func retirement(f facts) Response {
	verdict := "should rise to at least 15%"
	if f.rate >= 15 {
		verdict = "is on track"
	}
	return Response{
		Topic: TopicRetirement,
		Advice: lines(
			"Take any employer match first, then aim for 15-20% of gross income.",
			"A common target is 25 times your annual expenses.",
			"Your savings rate of "+f.percent(f.rate)+" "+verdict+".",
		),
		Recommendations: []Recommendation{
			{Label: "Monthly retirement saving (15%)", Value: f.income.Mul(pct(15)).Round(2)},
			{Label: "Target nest egg", Value: f.expense.Mul(decimal.NewFromInt(12 * 25)).Round(2)},
		},
	}
}

func tax(f facts) Response {
	return Response{
		Topic: TopicTax,
		Advice: lines(
			"Pre-tax retirement and health savings contributions lower taxable income.",
			"Keep records of deductible expenses and harvest losses where you can.",
			"On "+f.money(f.income)+" a month, maximising pre-tax contributions makes the largest difference.",
		),
		Recommendations: []Recommendation{
			{Label: "Annual income", Value: f.income.Mul(decimal.NewFromInt(12)).Round(2)},
		},
	}
}

func home(f facts) Response {
	price := f.income.Mul(decimal.NewFromInt(36)).Round(2)
	down := price.Mul(pct(20)).Round(2)
	payment := f.income.Mul(pct(28)).Round(2)

	readiness := "You already hold the 20% down payment."
	if f.balance.LessThan(down) {
		readiness = "You are " + f.money(down.Sub(f.balance)) + " short of a 20% down payment."
		if f.savings.IsPositive() {
			months := down.Sub(f.balance).Div(f.savings).Ceil()
			readiness += " At your current pace that takes " + months.String() + " months."
		}
	}
	return Response{
		Topic: TopicHome,
		Advice: lines(
			"A price around three times annual income, "+f.money(price)+", is a common ceiling.",
			"Keep the monthly payment under 28% of income, "+f.money(payment)+".",
			readiness,
			"Budget for closing costs, taxes, insurance and upkeep as well.",
		),
		Recommendations: []Recommendation{
			{Label: "Affordable price", Value: price},
			{Label: "Down payment (20%)", Value: down},
			{Label: "Maximum monthly payment", Value: payment},
		},
	}
}

func creditScore(f facts) Response {
	return Response{
		Topic: TopicCreditScore,
		Advice: lines(
			"Payment history matters most: pay every bill on time.",
			"Keep card utilization under 30%, ideally under 10%, and keep old accounts open.",
			"Check your reports for errors every quarter and dispute what is wrong.",
		),
		Recommendations: []Recommendation{},
	}
}

func sideIncome(f facts) Response {
	return Response{
		Topic: TopicSideIncome,
		Advice: lines(
			"Freelancing, consulting and tutoring pay best when they use skills you already have.",
			"Every extra 10% of income, "+f.money(f.income.Mul(pct(10)))+", lifts your savings rate directly.",
		),
		Recommendations: []Recommendation{
			{Label: "Extra 10% of income", Value: f.income.Mul(pct(10)).Round(2)},
		},
	}
}

func insurance(f facts) Response {
	return Response{
		Topic: TopicInsurance,
		Advice: lines(
			"Health, disability and liability cover come first; term life matters once others depend on you.",
			"Skip cover that duplicates what you can absorb from savings.",
			"Around "+f.money(f.income.Mul(pct(10)))+" a month is a reasonable insurance budget.",
		),
		Recommendations: []Recommendation{
			{Label: "Monthly insurance budget", Value: f.income.Mul(pct(10)).Round(2)},
		},
	}
}

func goals(f facts) Response {
	return Response{
		Topic: TopicGoals,
		Advice: lines(
			"Income "+f.money(f.income)+", expenses "+f.money(f.expense)+", savings "+f.money(f.savings)+" ("+f.percent(f.rate)+").",
			"Work through the goals in order:",
			"1. Emergency fund of "+f.money(f.expense.Mul(decimal.NewFromInt(6))),
			"2. High-interest debt",
			"3. Retirement accounts",
			"4. Major purchases and taxable investing",
		),
		Recommendations: []Recommendation{
			{Label: "Emergency fund target", Value: f.expense.Mul(decimal.NewFromInt(6)).Round(2)},
			{Label: "Monthly savings", Value: f.savings.Round(2)},
		},
	}
}

func crypto(f facts) Response {
	allocation := positive(f.balance.Mul(pct(5)))
	return Response{
		Topic: TopicCrypto,
		Advice: lines(
			"Only put in what you can afford to lose, and keep it under 5-10% of your portfolio.",
			"A 5% allocation of your balance would be "+f.money(allocation)+".",
			"Fund the emergency reserve and retirement first.",
		),
		Recommendations: []Recommendation{
			{Label: "5% allocation", Value: allocation},
		},
	}
}

func education(f facts) Response {
	return Response{
		Topic: TopicEducation,
		Advice: lines(
			"Start with a general personal finance book and an index investing primer.",
			"Free courses from your bank or broker cover the basics of budgeting and taxes.",
		),
		Recommendations: []Recommendation{},
	}
}

func general(f facts) Response {
	return Response{
		Topic: TopicGeneral,
		Advice: lines(
			"I can help with budgeting, saving, investing, debt, emergency funds, retirement, taxes, home buying, credit scores, side income, insurance, goals, crypto and learning resources.",
			"Balance "+f.money(f.balance)+", income "+f.money(f.income)+", expenses "+f.money(f.expense)+", savings rate "+f.percent(f.rate)+".",
		),
		Recommendations: []Recommendation{
			{Label: "Total balance", Value: f.balance},
			{Label: "Monthly income", Value: f.income},
			{Label: "Monthly expenses", Value: f.expense},
		},
	}
}
