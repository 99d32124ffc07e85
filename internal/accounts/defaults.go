package accounts

import (
	"github.com/brightsidebudget/bsb/internal/model"
	"github.com/brightsidebudget/bsb/internal/qname"
)

// DefaultChart returns a starter chart of accounts. kind selects the
// template; unknown kinds get the personal chart.
func DefaultChart(kind string) []model.Account {
	switch kind {
	case "personal_fr":
		return chart(personalFR)
	default:
		return chart(personalEN)
	}
}

var personalEN = []string{
	"Assets",
	"Assets:Bank",
	"Assets:Bank:Checking",
	"Assets:Bank:Savings",
	"Liabilities",
	"Liabilities:Credit Card",
	"Equity",
	"Equity:Opening Balances",
	"Equity:Suspense",
	"Income",
	"Income:Salary",
	"Expenses",
	"Expenses:Groceries",
	"Expenses:Housing",
	"Expenses:Transport",
	"Expenses:Uncategorized",
}

var personalFR = []string{
	"Actifs",
	"Actifs:Banque",
	"Actifs:Banque:Chèque",
	"Actifs:Banque:Épargne",
	"Passifs",
	"Passifs:Carte de crédit",
	"Capitaux propres",
	"Capitaux propres:Soldes d'ouverture",
	"Capitaux propres:Attente",
	"Revenus",
	"Revenus:Salaire",
	"Dépenses",
	"Dépenses:Épicerie",
	"Dépenses:Logement",
	"Dépenses:Transport",
	"Dépenses:Non classé",
}

func chart(names []string) []model.Account {
	out := make([]model.Account, len(names))
	for i, n := range names {
		out[i] = model.Account{Name: qname.MustParse(n)}
	}
	return out
}
