package model

// Headers are the column labels of the tabular files. They are passed
// explicitly to readers and writers; nothing reads a process-wide language.
type Headers struct {
	Txn           string
	Date          string
	Account       string
	ShortName     string
	ShortLen      string
	Amount        string
	Comment       string
	StmtDate      string
	StmtDesc      string
	Balance       string
	FiscalYear    string
	OtherAccounts string
}

// EnglishHeaders is the default label set.
func EnglishHeaders() Headers {
	return Headers{
		Txn:           "Txn",
		Date:          "Date",
		Account:       "Account",
		ShortName:     "Account short name",
		ShortLen:      "Short length",
		Amount:        "Amount",
		Comment:       "Comment",
		StmtDate:      "Statement date",
		StmtDesc:      "Statement description",
		Balance:       "Balance",
		FiscalYear:    "Fiscal year",
		OtherAccounts: "Other accounts",
	}
}

// FrenchHeaders is the French label set.
func FrenchHeaders() Headers {
	return Headers{
		Txn:           "No txn",
		Date:          "Date",
		Account:       "Compte",
		ShortName:     "Compte abrégé",
		ShortLen:      "Longueur abrégée",
		Amount:        "Montant",
		Comment:       "Commentaire",
		StmtDate:      "Date du relevé",
		StmtDesc:      "Description du relevé",
		Balance:       "Solde",
		FiscalYear:    "Année fiscale",
		OtherAccounts: "Autres comptes",
	}
}

// HeadersFor returns the label set for a language code ("en", "fr").
// Unknown codes fall back to English.
func HeadersFor(lang string) Headers {
	switch lang {
	case "fr":
		return FrenchHeaders()
	default:
		return EnglishHeaders()
	}
}

// RecordKey maps a column label to its bulk record key. Labels that are not
// fixed columns are tag names and map to themselves.
func (h Headers) RecordKey(label string) string {
	switch label {
	case h.Txn:
		return KeyTxn
	case h.Date:
		return KeyDate
	case h.Account:
		return KeyQName
	case h.ShortLen:
		return KeyShortLen
	case h.Amount:
		return KeyAmount
	case h.Comment:
		return KeyComment
	case h.StmtDate:
		return KeyStmtDate
	case h.StmtDesc:
		return KeyStmtDesc
	case h.Balance:
		return KeyBalance
	}
	return label
}

// IsFixed reports whether label names a fixed column rather than a tag.
func (h Headers) IsFixed(label string) bool {
	switch label {
	case h.Txn, h.Date, h.Account, h.ShortName, h.ShortLen, h.Amount, h.Comment,
		h.StmtDate, h.StmtDesc, h.Balance, h.FiscalYear, h.OtherAccounts:
		return true
	}
	return false
}
