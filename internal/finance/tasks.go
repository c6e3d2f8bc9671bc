package finance

import (
	"fmt"
	"strings"

	"findoc/internal/crew"
	"findoc/internal/tools"
)

// Pipeline names one of the four task pipelines a request may select.
type Pipeline string

const (
	PipelineAnalysis     Pipeline = "analysis"
	PipelineInvestment   Pipeline = "investment"
	PipelineRisk         Pipeline = "risk"
	PipelineVerification Pipeline = "verification"
)

// ParsePipelines parses a comma-separated pipeline list from the request.
//
// Expectations:
//   - Empty input yields the default [analysis]
//   - Names are trimmed and matched case-insensitively
//   - Duplicate names are collapsed, preserving first occurrence order
//   - An unknown name yields an error listing the valid pipelines
func ParsePipelines(raw string) ([]Pipeline, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return []Pipeline{PipelineAnalysis}, nil
	}

	valid := map[Pipeline]bool{
		PipelineAnalysis:     true,
		PipelineInvestment:   true,
		PipelineRisk:         true,
		PipelineVerification: true,
	}

	var out []Pipeline
	seen := make(map[Pipeline]bool)
	for _, part := range strings.Split(raw, ",") {
		p := Pipeline(strings.ToLower(strings.TrimSpace(part)))
		if p == "" {
			continue
		}
		if !valid[p] {
			return nil, fmt.Errorf("unknown task pipeline %q (valid: analysis, investment, risk, verification)", part)
		}
		if seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	if len(out) == 0 {
		return []Pipeline{PipelineAnalysis}, nil
	}
	return out, nil
}

// AnalysisTask is the comprehensive document analysis the service runs by
// default.
func AnalysisTask(analyst *crew.Agent) crew.Task {
	return crew.Task{
		Name:  string(PipelineAnalysis),
		Agent: analyst,
		Tools: []crew.Tool{tools.DocumentReader{}, tools.WebSearch{}},
		Description: `Conduct a comprehensive analysis of the financial document at {file_path}.

User query: {query}

Your analysis should include:
1. Document overview and key highlights
2. Financial performance metrics (revenue, profitability, cash flow)
3. Balance sheet analysis (assets, liabilities, equity)
4. Key financial ratios and trends
5. Market position and competitive analysis
6. Investment thesis and recommendations
7. Risk factors and concerns

Use the document reading tool to extract data and provide evidence-based insights.
Search the web for recent market information if needed to contextualize the analysis.`,
		ExpectedOutput: `A comprehensive financial analysis report including:

## Executive Summary
- Key findings and investment recommendation

## Financial Performance Analysis
- Revenue and growth trends
- Profitability metrics
- Cash flow analysis

## Balance Sheet Assessment
- Asset quality and composition
- Debt levels and capital structure

## Investment Recommendation
- Clear buy/hold/sell recommendation with reasoning
- Target price or valuation range
- Time horizon for the recommendation

## Risk Assessment
- Key risk factors
- Risk mitigation strategies

All analysis should be based on concrete data from the financial document.`,
	}
}

// InvestmentTask drills into valuation and investment attractiveness.
func InvestmentTask(analyst *crew.Agent) crew.Task {
	return crew.Task{
		Name:  string(PipelineInvestment),
		Agent: analyst,
		Tools: []crew.Tool{tools.DocumentReader{}, tools.InvestmentFramework{}},
		Description: `Provide detailed investment analysis and recommendations based on the financial document at {file_path}.

Focus on:
1. Investment attractiveness and valuation
2. Growth prospects and competitive advantages
3. Dividend policy and shareholder returns
4. Comparison with industry peers
5. Specific investment strategies (long-term vs short-term)

User query: {query}`,
		ExpectedOutput: `Investment Analysis Report:

## Investment Rating
- Overall recommendation (Strong Buy/Buy/Hold/Sell/Strong Sell)
- Confidence level and rationale

## Valuation Analysis
- Current valuation metrics
- Fair value estimation
- Price targets

## Growth Prospects
- Revenue growth projections
- Market expansion opportunities
- Competitive advantages

## Shareholder Value
- Dividend policy analysis
- Share buyback programs
- Capital allocation strategy

## Portfolio Fit
- Suitable investor profiles
- Portfolio allocation recommendations`,
	}
}

// RiskTask produces the standalone risk assessment.
func RiskTask(analyst *crew.Agent) crew.Task {
	return crew.Task{
		Name:  string(PipelineRisk),
		Agent: analyst,
		Tools: []crew.Tool{tools.DocumentReader{}, tools.RiskFramework{}},
		Description: `Conduct a thorough risk assessment of the investment opportunity described in the financial document at {file_path}.

Analyze:
1. Financial risks (leverage, liquidity, credit)
2. Operational risks (business model, management)
3. Market risks (volatility, competition, regulation)
4. ESG risks (environmental, social, governance)
5. Macroeconomic risks

User query: {query}`,
		ExpectedOutput: `Risk Assessment Report:

## Risk Rating
- Overall risk level (Low/Medium/High)
- Risk-adjusted return potential

## Financial Risks
- Debt and leverage analysis
- Liquidity and cash flow risks

## Business Risks
- Operational and competitive risks
- Management and governance risks

## Market Risks
- Industry and regulatory risks
- Economic sensitivity analysis

## Risk Mitigation
- Diversification strategies
- Hedging opportunities
- Position sizing recommendations`,
	}
}

// VerificationTask has the verifier agent validate the document and any
// preceding analysis (fed in as previous-task context).
func VerificationTask(verifier *crew.Agent) crew.Task {
	return crew.Task{
		Name:  string(PipelineVerification),
		Agent: verifier,
		Tools: []crew.Tool{tools.DocumentReader{}},
		Description: `Verify the financial document at {file_path} and validate the quality of any analysis provided as context.

Check:
1. Document authenticity and completeness
2. Data consistency and accuracy
3. Analysis quality and methodology
4. Compliance with financial reporting standards`,
		ExpectedOutput: `Document Verification Report:

## Document Status
- File type and format validation
- Content completeness assessment

## Data Quality
- Numerical consistency checks
- Missing information identification

## Analysis Validation
- Methodology appropriateness
- Conclusion reasonableness

## Recommendations
- Additional analysis needed
- Data verification suggestions`,
	}
}

// buildTasks maps the requested pipelines onto tasks in request order,
// constructing each agent once even when it serves several tasks.
func buildTasks(pipelines []Pipeline) ([]crew.Task, error) {
	var analyst, verifier *crew.Agent
	getAnalyst := func() *crew.Agent {
		if analyst == nil {
			analyst = NewAnalystAgent()
		}
		return analyst
	}
	getVerifier := func() *crew.Agent {
		if verifier == nil {
			verifier = NewVerifierAgent()
		}
		return verifier
	}

	var tasks []crew.Task
	for _, p := range pipelines {
		switch p {
		case PipelineAnalysis:
			tasks = append(tasks, AnalysisTask(getAnalyst()))
		case PipelineInvestment:
			tasks = append(tasks, InvestmentTask(getAnalyst()))
		case PipelineRisk:
			tasks = append(tasks, RiskTask(getAnalyst()))
		case PipelineVerification:
			tasks = append(tasks, VerificationTask(getVerifier()))
		default:
			return nil, fmt.Errorf("unknown task pipeline %q", p)
		}
	}
	return tasks, nil
}
