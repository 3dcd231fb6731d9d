package handler

// CreateAccountRequest represents a request to register a ledger account
type CreateAccountRequest struct {
	Code string `json:"code" binding:"required"`
	Name string `json:"name" binding:"required"`
	Type string `json:"type" binding:"required,oneof=ASSET LIABILITY EQUITY INCOME EXPENSE"`
}

// AccountResponse represents an account in API responses
type AccountResponse struct {
	ID            string `json:"id"`
	HospitalID    string `json:"hospital_id"`
	Code          string `json:"code"`
	Name          string `json:"name"`
	Type          string `json:"type"`
	NormalBalance string `json:"normal_balance"`
	BalanceCents  int64  `json:"balance_cents"`
	CreatedAt     string `json:"created_at"`
	UpdatedAt     string `json:"updated_at"`
}

// BatchLineRequest is one debit/credit pair in a posting request
type BatchLineRequest struct {
	DebitAccountCode  string `json:"debit_account_code" binding:"required"`
	CreditAccountCode string `json:"credit_account_code" binding:"required"`
	AmountCents       int64  `json:"amount_cents" binding:"required,gt=0"`
	CurrencyCode      string `json:"currency_code" binding:"required,len=3"`
	Description       string `json:"description,omitempty"`
}

// PostBatchRequest represents a request to post a journal batch
type PostBatchRequest struct {
	TransactionRef  string             `json:"transaction_ref" binding:"required"`
	TransactionDate string             `json:"transaction_date" binding:"required"`
	Description     string             `json:"description,omitempty"`
	Lines           []BatchLineRequest `json:"lines" binding:"required,min=1,dive"`
}

// EntryResponse represents one ledger entry in API responses
type EntryResponse struct {
	ID                    string `json:"id"`
	TransactionDate       string `json:"transaction_date"`
	Description           string `json:"description"`
	DebitAccountCode      string `json:"debit_account_code"`
	CreditAccountCode     string `json:"credit_account_code"`
	AmountCents           int64  `json:"amount_cents"`
	CurrencyCode          string `json:"currency_code"`
	ExchangeRateAtPosting string `json:"exchange_rate_at_posting"`
	BaseAmountCents       int64  `json:"base_amount_cents"`
}

// BatchResponse represents a posted batch in API responses
type BatchResponse struct {
	ID              string          `json:"id"`
	TransactionRef  string          `json:"transaction_ref"`
	HospitalID      string          `json:"hospital_id"`
	TransactionDate string          `json:"transaction_date"`
	Description     string          `json:"description"`
	Actor           string          `json:"actor"`
	TotalCents      int64           `json:"total_cents"`
	Reversed        bool            `json:"reversed"`
	CreatedAt       string          `json:"created_at"`
	Entries         []EntryResponse `json:"entries,omitempty"`
}

// BookLockRequest represents a request to move the close boundary
type BookLockRequest struct {
	LockDate string `json:"lock_date" binding:"required"` // YYYY-MM-DD
}

// BookLockResponse represents the current close boundary
type BookLockResponse struct {
	HospitalID string `json:"hospital_id"`
	LockDate   string `json:"lock_date"`
	UpdatedBy  string `json:"updated_by"`
	UpdatedAt  string `json:"updated_at"`
}

// AuditQueryParams represents audit archive query filters
type AuditQueryParams struct {
	TableName string `form:"table_name"`
	From      string `form:"from"` // RFC 3339
	To        string `form:"to"`
	Page      int    `form:"page,default=1" binding:"min=1"`
	PerPage   int    `form:"per_page,default=20" binding:"min=1,max=100"`
}

// ObligationListParams represents obligation list filters
type ObligationListParams struct {
	Status  string `form:"status,default=PENDING" binding:"oneof=PENDING RESOLVED ABANDONED"`
	Page    int    `form:"page,default=1" binding:"min=1"`
	PerPage int    `form:"per_page,default=20" binding:"min=1,max=100"`
}

// RegisterAssetRequest represents a request to place a fixed asset on
// the books at full book value
type RegisterAssetRequest struct {
	Name               string `json:"name" binding:"required"`
	CostCenter         string `json:"cost_center,omitempty"`
	PurchaseCostCents  int64  `json:"purchase_cost_cents" binding:"required,gt=0"`
	SalvageValueCents  int64  `json:"salvage_value_cents" binding:"min=0"`
	UsefulLifeYears    int    `json:"useful_life_years" binding:"required,min=1"`
	DepreciationMethod string `json:"depreciation_method,omitempty" binding:"omitempty,oneof=STRAIGHT_LINE"`
	AcquiredAt         string `json:"acquired_at" binding:"required"` // YYYY-MM-DD or RFC 3339
}

// UpsertCurrencyRequest represents a currency rate upsert
type UpsertCurrencyRequest struct {
	Code         string `json:"code" binding:"required,len=3"`
	ExchangeRate string `json:"exchange_rate" binding:"required"`
	IsBase       bool   `json:"is_base"`
}

// RuleLineRequest is one line mapping in a posting rule
type RuleLineRequest struct {
	DebitAccountCode      string `json:"debit_account_code" binding:"required"`
	CreditAccountCode     string `json:"credit_account_code" binding:"required"`
	CashCreditAccountCode string `json:"cash_credit_account_code,omitempty"`
	Basis                 string `json:"basis" binding:"required,oneof=GROSS RATE"`
	RateBps               int64  `json:"rate_bps,omitempty" binding:"min=0"`
	Description           string `json:"description,omitempty"`
}

// UpsertRuleRequest represents a posting rule upsert
type UpsertRuleRequest struct {
	SourceType string            `json:"source_type" binding:"required,oneof=INVOICE PAYMENT EXPENSE PAYROLL"`
	Transition string            `json:"transition" binding:"required,oneof=FINALIZED CLEARED APPROVED"`
	Lines      []RuleLineRequest `json:"lines" binding:"required,min=1,dive"`
}
