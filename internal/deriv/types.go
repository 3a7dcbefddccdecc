package deriv

import "encoding/json"

// Outbound request shapes for the Deriv WebSocket API. Every request is a
// flat JSON object keyed by its method name; zero-valued optional fields
// are omitted from the wire.

// AuthorizeRequest authenticates the session with an API token.
type AuthorizeRequest struct {
	Authorize string `json:"authorize"`
}

// TicksRequest subscribes to a live tick stream for a symbol.
type TicksRequest struct {
	Ticks     string `json:"ticks"`
	Subscribe int    `json:"subscribe"`
}

// TicksHistoryRequest backfills recent ticks before the live stream starts.
type TicksHistoryRequest struct {
	TicksHistory string `json:"ticks_history"`
	Count        int    `json:"count"`
	End          string `json:"end"`
	Style        string `json:"style"`
}

// BalanceRequest subscribes to balance pushes for one account, or for all
// accounts when Account is "all".
type BalanceRequest struct {
	Balance   int    `json:"balance"`
	Subscribe int    `json:"subscribe,omitempty"`
	Account   string `json:"account,omitempty"`
	LoginID   string `json:"loginid,omitempty"`
}

// AccountListRequest fetches the accounts available to the token.
type AccountListRequest struct {
	AccountList int `json:"account_list"`
}

// ForgetRequest cancels a single stream by its subscription id.
type ForgetRequest struct {
	Forget string `json:"forget"`
}

// ForgetAllRequest cancels every stream of the named kinds. The API accepts
// a bare string too, but we always send the array form so one request can
// clear ticks and balance streams together.
type ForgetAllRequest struct {
	ForgetAll []string `json:"forget_all"`
}

// ProposalRequest prices a contract before purchase.
type ProposalRequest struct {
	Proposal     int     `json:"proposal"`
	Subscribe    int     `json:"subscribe,omitempty"`
	Amount       float64 `json:"amount"`
	Basis        string  `json:"basis"`
	ContractType string  `json:"contract_type"`
	Currency     string  `json:"currency"`
	Duration     int     `json:"duration"`
	DurationUnit string  `json:"duration_unit"`
	Symbol       string  `json:"symbol"`
}

// BuyRequest purchases a previously proposed contract.
type BuyRequest struct {
	Buy   string  `json:"buy"`
	Price float64 `json:"price"`
}

// APIError is the error object Deriv attaches to failed responses.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// AuthorizeResult carries the authorized account identity.
type AuthorizeResult struct {
	LoginID   string  `json:"loginid"`
	Balance   float64 `json:"balance"`
	Currency  string  `json:"currency"`
	IsVirtual int     `json:"is_virtual"`
	Email     string  `json:"email"`
}

// AccountEntry is one element of the account_list response.
type AccountEntry struct {
	LoginID   string `json:"loginid"`
	Currency  string `json:"currency"`
	IsVirtual int    `json:"is_virtual"`
}

// BalanceResult is a balance snapshot or stream push.
type BalanceResult struct {
	Balance  float64 `json:"balance"`
	Currency string  `json:"currency"`
	LoginID  string  `json:"loginid"`
}

// TickResult is one live tick from a ticks stream.
type TickResult struct {
	Symbol string      `json:"symbol"`
	Quote  json.Number `json:"quote"`
	Epoch  int64       `json:"epoch"`
	ID     string      `json:"id"`
}

// HistoryResult is the ticks_history backfill payload.
type HistoryResult struct {
	Prices []json.Number `json:"prices"`
	Times  []int64       `json:"times"`
}

// ProposalResult is a contract pricing response.
type ProposalResult struct {
	ID       string  `json:"id"`
	AskPrice float64 `json:"ask_price"`
	Payout   float64 `json:"payout"`
}

// BuyResult confirms a contract purchase.
type BuyResult struct {
	ContractID   int64   `json:"contract_id"`
	BuyPrice     float64 `json:"buy_price"`
	Payout       float64 `json:"payout"`
	LongCode     string  `json:"longcode"`
	PurchaseTime int64   `json:"purchase_time"`
}

// subscriptionInfo carries the stream id echoed back on subscribed
// responses, used to forget the stream later.
type subscriptionInfo struct {
	ID string `json:"id"`
}

// envelope is the inbound demux shape. Deriv responses have no single type
// discriminator; the populated field names the message kind, so every
// payload is optional and pointer-typed.
type envelope struct {
	MsgType      string            `json:"msg_type"`
	Error        *APIError         `json:"error"`
	Authorize    *AuthorizeResult  `json:"authorize"`
	AccountList  []AccountEntry    `json:"account_list"`
	Balance      *BalanceResult    `json:"balance"`
	Tick         *TickResult       `json:"tick"`
	History      *HistoryResult    `json:"history"`
	Proposal     *ProposalResult   `json:"proposal"`
	Buy          *BuyResult        `json:"buy"`
	Subscription *subscriptionInfo `json:"subscription"`
	EchoReq      map[string]any    `json:"echo_req"`
}
