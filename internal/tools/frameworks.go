package tools

import (
	"context"
	"fmt"
	"strings"
)

// InvestmentFramework applies the house investment-analysis framework to
// extracted document text. The framework itself is fixed; the agent combines
// its headings with concrete figures from the document.
type InvestmentFramework struct{}

// Name implements the crew tool contract.
func (InvestmentFramework) Name() string { return "analyze_investment" }

// Description is shown to the agent in its tool list.
func (InvestmentFramework) Description() string {
	return `apply the investment analysis framework to document text. Args: {"document_data":"<extracted document text>"}`
}

// Call returns the investment framework, or a diagnostic message when the
// document text is missing or itself an extraction error.
//
// Expectations:
//   - Returns the "cannot analyze" message for empty document_data
//   - Returns the "cannot analyze" message when document_data carries an extraction error
//   - Returns the five framework dimensions otherwise
func (InvestmentFramework) Call(_ context.Context, args map[string]string) (string, error) {
	data := args["document_data"]
	if data == "" || strings.Contains(data, "Error") {
		return "Cannot analyze investment data due to document reading error", nil
	}

	dimensions := []struct{ name, focus string }{
		{"revenue_analysis", "Revenue trends and growth patterns"},
		{"profitability_metrics", "Profit margins and efficiency ratios"},
		{"liquidity_assessment", "Cash flow and working capital analysis"},
		{"debt_evaluation", "Debt levels and financial leverage"},
		{"market_position", "Competitive positioning and market share"},
	}

	var sb strings.Builder
	sb.WriteString("Investment Analysis Framework Applied:\n")
	for _, d := range dimensions {
		fmt.Fprintf(&sb, "- %s: %s\n", d.name, d.focus)
	}
	return strings.TrimRight(sb.String(), "\n"), nil
}

// RiskFramework enumerates the risk categories every assessment must cover.
type RiskFramework struct{}

// Name implements the crew tool contract.
func (RiskFramework) Name() string { return "assess_risk" }

// Description is shown to the agent in its tool list.
func (RiskFramework) Description() string {
	return `apply the risk assessment framework to document text. Args: {"document_data":"<extracted document text>"}`
}

// Call returns the risk framework, or a diagnostic message when the document
// text is missing or itself an extraction error.
//
// Expectations:
//   - Returns the "cannot perform" message for empty document_data
//   - Returns the "cannot perform" message when document_data carries an extraction error
//   - Returns the five risk factor categories otherwise
func (RiskFramework) Call(_ context.Context, args map[string]string) (string, error) {
	data := args["document_data"]
	if data == "" || strings.Contains(data, "Error") {
		return "Cannot perform risk assessment due to document reading error", nil
	}

	factors := []string{
		"Market volatility and economic conditions",
		"Industry-specific risks and competition",
		"Financial leverage and debt service capability",
		"Regulatory and compliance risks",
		"Operational and management risks",
	}

	var sb strings.Builder
	sb.WriteString("Risk Assessment Framework:\n")
	for _, f := range factors {
		sb.WriteString("- ")
		sb.WriteString(f)
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n"), nil
}
