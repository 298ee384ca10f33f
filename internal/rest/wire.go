package rest

import (
	"fmt"
	"strconv"
	"time"

	"marketmirror/internal/model"
)

// Timestamps on the REST surface carry an explicit zone offset.
const wireTimeLayout = "2006-01-02 15:04:05-0700"

// Windowed listings take minute-resolution bounds.
const windowTimeLayout = "2006-01-02T15:04"

type wireContract struct {
	ID              int64  `json:"id"`
	Label           string `json:"label"`
	UnderlyingAsset string `json:"underlying_asset"`
	DerivativeType  string `json:"derivative_type"`
	IsCall          bool   `json:"is_call"`
	StrikePrice     int64  `json:"strike_price"`
	DateExpires     string `json:"date_expires"`
	DateLive        string `json:"date_live"`
	IsNextDay       bool   `json:"is_next_day"`
	Active          bool   `json:"active"`
	Multiplier      int64  `json:"multiplier"`
}

func (w *wireContract) toModel() (model.Contract, error) {
	dt, err := model.ParseDerivativeType(w.DerivativeType)
	if err != nil {
		return model.Contract{}, fmt.Errorf("contract %d: %w", w.ID, err)
	}
	expires, err := time.Parse(wireTimeLayout, w.DateExpires)
	if err != nil {
		return model.Contract{}, fmt.Errorf("contract %d date_expires: %w", w.ID, err)
	}
	var live time.Time
	if w.DateLive != "" {
		live, err = time.Parse(wireTimeLayout, w.DateLive)
		if err != nil {
			return model.Contract{}, fmt.Errorf("contract %d date_live: %w", w.ID, err)
		}
	}
	return model.Contract{
		ID:              w.ID,
		Label:           w.Label,
		UnderlyingAsset: w.UnderlyingAsset,
		DerivativeType:  dt,
		IsCall:          w.IsCall,
		StrikePrice:     w.StrikePrice,
		DateExpires:     expires,
		DateLive:        live,
		IsNextDay:       w.IsNextDay,
		Active:          w.Active,
		Multiplier:      w.Multiplier,
	}, nil
}

type wireOrder struct {
	MID         string `json:"mid"`
	ContractID  int64  `json:"contract_id"`
	Size        int64  `json:"size"`
	Price       int64  `json:"price"`
	IsAsk       bool   `json:"is_ask"`
	Clock       int64  `json:"clock"`
	Ticks       int64  `json:"ticks"`
	StatusType  int    `json:"status_type"`
	MPID        string `json:"mpid"`
	CID         string `json:"cid"`
	FilledSize  int64  `json:"filled_size"`
	FilledPrice int64  `json:"filled_price"`
	OrderType   string `json:"order_type"`
	UpdatedTime int64  `json:"updated_time"`
}

func (w *wireOrder) toModel() model.Order {
	return model.Order{
		MID:         w.MID,
		ContractID:  w.ContractID,
		Size:        w.Size,
		Price:       w.Price,
		IsAsk:       w.IsAsk,
		Clock:       w.Clock,
		Ticks:       w.Ticks,
		StatusType:  w.StatusType,
		MPID:        w.MPID,
		CID:         w.CID,
		FilledSize:  w.FilledSize,
		FilledPrice: w.FilledPrice,
		OrderType:   w.OrderType,
		UpdatedTime: w.UpdatedTime,
	}
}

type wirePosition struct {
	ID           int64        `json:"id"`
	Contract     wireContract `json:"contract"`
	Size         int64        `json:"size"`
	AssignedSize int64        `json:"assigned_size"`
	Type         string       `json:"type"`
	MPID         string       `json:"mpid"`
}

func (w *wirePosition) toModel() (model.Position, error) {
	pt, err := model.ParsePositionType(w.Type)
	if err != nil {
		return model.Position{}, fmt.Errorf("position %d: %w", w.ID, err)
	}
	return model.Position{
		ID:            strconv.FormatInt(w.ID, 10),
		ContractID:    w.Contract.ID,
		Size:          w.Size,
		ExercisedSize: w.AssignedSize,
		Type:          pt,
		MPID:          w.MPID,
	}, nil
}

// wireFill's contract id and notional come over the wire as strings.
type wireFill struct {
	ContractID string `json:"contract_id"`
	Side       string `json:"side"`
	FilledSize int64  `json:"filled_size"`
	Fee        int64  `json:"fee"`
	Rebate     int64  `json:"rebate"`
	Premium    int64  `json:"premium"`
}

func (w *wireFill) toModel() (model.Fill, error) {
	contractID, err := strconv.ParseInt(w.ContractID, 10, 64)
	if err != nil {
		return model.Fill{}, fmt.Errorf("fill contract_id %q: %w", w.ContractID, err)
	}
	return model.Fill{
		ContractID: contractID,
		Side:       w.Side,
		FilledSize: w.FilledSize,
		Fee:        w.Fee,
		Rebate:     w.Rebate,
		Premium:    w.Premium,
	}, nil
}

type wireTrade struct {
	ContractID    string `json:"contract_id"`
	ContractLabel string `json:"contract_label"`
	OrderType     string `json:"order_type"`
	FilledPrice   int64  `json:"filled_price"`
	FilledSize    int64  `json:"filled_size"`
	Side          string `json:"side"`
	Timestamp     string `json:"timestamp"`
	MPID          string `json:"mpid"`
}

func (w *wireTrade) toModel() (model.Trade, error) {
	contractID, err := strconv.ParseInt(w.ContractID, 10, 64)
	if err != nil {
		return model.Trade{}, fmt.Errorf("trade contract_id %q: %w", w.ContractID, err)
	}
	ts, err := strconv.ParseInt(w.Timestamp, 10, 64)
	if err != nil {
		return model.Trade{}, fmt.Errorf("trade timestamp %q: %w", w.Timestamp, err)
	}
	return model.Trade{
		ContractID:    contractID,
		ContractLabel: w.ContractLabel,
		OrderType:     w.OrderType,
		FilledPrice:   w.FilledPrice,
		FilledSize:    w.FilledSize,
		Side:          w.Side,
		Timestamp:     ts,
		MPID:          w.MPID,
	}, nil
}

type wireTransaction struct {
	Asset                 string `json:"asset"`
	Amount                int64  `json:"amount"`
	State                 string `json:"state"`
	DebitAccountFieldName string `json:"debit_account_field_name"`
	DebitPreBalance       *int64 `json:"debit_pre_balance"`
	DebitPostBalance      *int64 `json:"debit_post_balance"`
	CreditAccountField    string `json:"credit_account_field_name"`
	CreditPreBalance      *int64 `json:"credit_pre_balance"`
	CreditPostBalance     *int64 `json:"credit_post_balance"`
}

func (w *wireTransaction) toModel() model.Transaction {
	return model.Transaction{
		Asset:              w.Asset,
		Amount:             w.Amount,
		State:              w.State,
		DebitAccountField:  w.DebitAccountFieldName,
		DebitPreBalance:    w.DebitPreBalance,
		DebitPostBalance:   w.DebitPostBalance,
		CreditAccountField: w.CreditAccountField,
		CreditPreBalance:   w.CreditPreBalance,
		CreditPostBalance:  w.CreditPostBalance,
	}
}

type wireBookEntry struct {
	MID   string `json:"mid"`
	IsAsk bool   `json:"is_ask"`
	Price int64  `json:"price"`
	Size  int64  `json:"size"`
	Clock int64  `json:"clock"`
}

type wireBookState struct {
	ContractID int64           `json:"contract_id"`
	BookStates []wireBookEntry `json:"book_states"`
}

func (w *wireBookState) toModel() model.BookSnapshot {
	entries := make([]model.BookEntry, 0, len(w.BookStates))
	for _, e := range w.BookStates {
		entries = append(entries, model.BookEntry{
			MID:   e.MID,
			IsAsk: e.IsAsk,
			Price: e.Price,
			Size:  e.Size,
			Clock: e.Clock,
		})
	}
	return model.BookSnapshot{ContractID: w.ContractID, Entries: entries}
}
