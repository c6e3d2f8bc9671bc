// Package finance defines the financial-analysis crew: the agents, their
// task prompts, and the Service the HTTP layer drives.
package finance

import (
	"findoc/internal/crew"
	"findoc/internal/tools"
)

// NewAnalystAgent builds the Senior Financial Analyst. It carries the full
// tool set; individual tasks narrow it down.
func NewAnalystAgent() *crew.Agent {
	return &crew.Agent{
		Role: "a Senior Financial Analyst",
		Goal: "Provide comprehensive and accurate financial analysis of documents with actionable investment insights",
		Backstory: "You are a seasoned financial analyst with over 15 years of experience in " +
			"investment banking and equity research. You specialize in analyzing corporate financial " +
			"statements, identifying key financial metrics, and providing data-driven investment " +
			"recommendations. You have a track record of successful stock picks and risk assessments.",
		Tools: []crew.Tool{
			tools.DocumentReader{},
			tools.WebSearch{},
			tools.InvestmentFramework{},
			tools.RiskFramework{},
		},
		MaxIter: 3,
		Memory:  true,
	}
}

// NewVerifierAgent builds the Financial Document Verifier. It may only read
// the document.
func NewVerifierAgent() *crew.Agent {
	return &crew.Agent{
		Role: "a Financial Document Verifier",
		Goal: "Verify the authenticity and completeness of financial documents and validate analysis quality",
		Backstory: "You are a meticulous financial auditor with expertise in document " +
			"verification and quality assurance. You ensure all financial analyses are based on " +
			"accurate data and follow industry standards.",
		Tools:   []crew.Tool{tools.DocumentReader{}},
		MaxIter: 3,
	}
}
