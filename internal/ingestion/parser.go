// Package ingestion is the feed shell: it maintains the websocket
// connection to the exchange, parses raw frames into typed events, and
// hands them to the engine. Validation happens here so the engine only
// ever sees well-formed events.
package ingestion

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"marketmirror/internal/event"
	"marketmirror/internal/model"
)

// ParseMessage converts one raw feed frame into a typed event. Frames with
// a missing or malformed required field are rejected outright; an unknown
// type string parses into an Unrecognized event so the dispatcher can count
// and log it.
func ParseMessage(data []byte) (event.Event, error) {
	var head struct {
		Type *string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("parse frame: %w", err)
	}
	if head.Type == nil {
		return nil, fmt.Errorf("frame without a type field")
	}

	switch typ := *head.Type; typ {
	case "book_top":
		return parseBookTop(data)
	case "action_report":
		return parseActionReport(data)
	case "heartbeat":
		return parseHeartbeat(data)
	case "collateral_balance_update":
		return parseCollateralBalanceUpdate(data)
	case "open_positions_update":
		return parseOpenPositionsUpdate(data)
	case "contract_added":
		return parseContractAdded(data)
	case "contract_removed":
		return parseContractRemoved(data)
	case "trade_busted":
		return parseTradeBusted(data)
	case "websocket_starting":
		return &event.WebsocketStarting{}, nil
	case "exposure_reports":
		return &event.ExposureReports{}, nil
	default:
		if strings.Contains(typ, "contact_") {
			return &event.Info{Category: event.TypeContactInfo, RawType: typ}, nil
		}
		if strings.Contains(typ, "_success") {
			return &event.Info{Category: event.TypeSuccess, RawType: typ}, nil
		}
		return &event.Unrecognized{RawType: typ}, nil
	}
}

type bookTopJSON struct {
	ContractID *int64 `json:"contract_id"`
	Clock      *int64 `json:"clock"`
	Bid        int64  `json:"bid"`
	Ask        int64  `json:"ask"`
}

func parseBookTop(data []byte) (*event.BookTop, error) {
	var j bookTopJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse book_top: %w", err)
	}
	if j.ContractID == nil || j.Clock == nil {
		return nil, fmt.Errorf("book_top missing contract_id or clock")
	}
	return &event.BookTop{
		ContractID: *j.ContractID,
		Clock:      *j.Clock,
		Bid:        j.Bid,
		Ask:        j.Ask,
	}, nil
}

type actionReportJSON struct {
	MID         *string `json:"mid"`
	ContractID  *int64  `json:"contract_id"`
	Size        int64   `json:"size"`
	Price       int64   `json:"price"`
	IsAsk       bool    `json:"is_ask"`
	Clock       int64   `json:"clock"`
	Ticks       int64   `json:"ticks"`
	StatusType  *int    `json:"status_type"`
	MPID        string  `json:"mpid"`
	CID         string  `json:"cid"`
	FilledSize  int64   `json:"filled_size"`
	FilledPrice int64   `json:"filled_price"`
	OrderType   string  `json:"order_type"`
	UpdatedTime int64   `json:"updated_time"`
}

func parseActionReport(data []byte) (*event.ActionReport, error) {
	var j actionReportJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse action_report: %w", err)
	}
	if j.MID == nil || j.ContractID == nil || j.StatusType == nil {
		return nil, fmt.Errorf("action_report missing mid, contract_id or status_type")
	}
	return &event.ActionReport{Order: model.Order{
		MID:         *j.MID,
		ContractID:  *j.ContractID,
		Size:        j.Size,
		Price:       j.Price,
		IsAsk:       j.IsAsk,
		Clock:       j.Clock,
		Ticks:       j.Ticks,
		StatusType:  *j.StatusType,
		MPID:        j.MPID,
		CID:         j.CID,
		FilledSize:  j.FilledSize,
		FilledPrice: j.FilledPrice,
		OrderType:   j.OrderType,
		UpdatedTime: j.UpdatedTime,
	}}, nil
}

type heartbeatJSON struct {
	Ticks     *int64  `json:"ticks"`
	RunID     *string `json:"run_id"`
	Timestamp int64   `json:"timestamp"`
}

func parseHeartbeat(data []byte) (*event.Heartbeat, error) {
	var j heartbeatJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse heartbeat: %w", err)
	}
	if j.Ticks == nil || j.RunID == nil {
		return nil, fmt.Errorf("heartbeat missing ticks or run_id")
	}
	return &event.Heartbeat{
		Ticks:     *j.Ticks,
		RunID:     *j.RunID,
		Timestamp: j.Timestamp,
	}, nil
}

type collateralJSON struct {
	Collateral *struct {
		AvailableBalances      map[string]int64 `json:"available_balances"`
		PositionLockedBalances map[string]int64 `json:"position_locked_balances"`
	} `json:"collateral"`
}

func parseCollateralBalanceUpdate(data []byte) (*event.CollateralBalanceUpdate, error) {
	var j collateralJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse collateral_balance_update: %w", err)
	}
	if j.Collateral == nil {
		return nil, fmt.Errorf("collateral_balance_update missing collateral")
	}
	return &event.CollateralBalanceUpdate{
		AvailableBalances:      j.Collateral.AvailableBalances,
		PositionLockedBalances: j.Collateral.PositionLockedBalances,
	}, nil
}

type openPositionsJSON struct {
	Positions *[]struct {
		ContractID    int64  `json:"contract_id"`
		Size          int64  `json:"size"`
		ExercisedSize int64  `json:"exercised_size"`
		MPID          string `json:"mpid"`
	} `json:"positions"`
}

func parseOpenPositionsUpdate(data []byte) (*event.OpenPositionsUpdate, error) {
	var j openPositionsJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse open_positions_update: %w", err)
	}
	if j.Positions == nil {
		return nil, fmt.Errorf("open_positions_update missing positions")
	}
	positions := make([]model.PositionUpdate, 0, len(*j.Positions))
	for _, p := range *j.Positions {
		positions = append(positions, model.PositionUpdate{
			ContractID:    p.ContractID,
			Size:          p.Size,
			ExercisedSize: p.ExercisedSize,
			MPID:          p.MPID,
		})
	}
	return &event.OpenPositionsUpdate{Positions: positions}, nil
}

type contractAddedJSON struct {
	Data *struct {
		ID             int64  `json:"id"`
		DerivativeType string `json:"derivative_type"`
	} `json:"data"`
}

func parseContractAdded(data []byte) (*event.ContractAdded, error) {
	var j contractAddedJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse contract_added: %w", err)
	}
	if j.Data == nil || j.Data.ID == 0 {
		return nil, fmt.Errorf("contract_added missing contract data")
	}
	dt, err := model.ParseDerivativeType(j.Data.DerivativeType)
	if err != nil {
		return nil, fmt.Errorf("parse contract_added: %w", err)
	}
	return &event.ContractAdded{ContractID: j.Data.ID, DerivativeType: dt}, nil
}

type contractJSON struct {
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

const wireTimeLayout = "2006-01-02 15:04:05-0700"

func (j *contractJSON) toModel() (model.Contract, error) {
	dt, err := model.ParseDerivativeType(j.DerivativeType)
	if err != nil {
		return model.Contract{}, fmt.Errorf("contract %d: %w", j.ID, err)
	}
	expires, err := time.Parse(wireTimeLayout, j.DateExpires)
	if err != nil {
		return model.Contract{}, fmt.Errorf("contract %d date_expires: %w", j.ID, err)
	}
	var live time.Time
	if j.DateLive != "" {
		live, err = time.Parse(wireTimeLayout, j.DateLive)
		if err != nil {
			return model.Contract{}, fmt.Errorf("contract %d date_live: %w", j.ID, err)
		}
	}
	return model.Contract{
		ID:              j.ID,
		Label:           j.Label,
		UnderlyingAsset: j.UnderlyingAsset,
		DerivativeType:  dt,
		IsCall:          j.IsCall,
		StrikePrice:     j.StrikePrice,
		DateExpires:     expires,
		DateLive:        live,
		IsNextDay:       j.IsNextDay,
		Active:          j.Active,
		Multiplier:      j.Multiplier,
	}, nil
}

type contractRemovedJSON struct {
	Data *contractJSON `json:"data"`
}

func parseContractRemoved(data []byte) (*event.ContractRemoved, error) {
	var j contractRemovedJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse contract_removed: %w", err)
	}
	if j.Data == nil {
		return nil, fmt.Errorf("contract_removed missing contract data")
	}
	contract, err := j.Data.toModel()
	if err != nil {
		return nil, fmt.Errorf("parse contract_removed: %w", err)
	}
	return &event.ContractRemoved{Contract: contract}, nil
}

type tradeBustedJSON struct {
	ContractID int64  `json:"contract_id"`
	MID        string `json:"mid"`
}

func parseTradeBusted(data []byte) (*event.TradeBusted, error) {
	var j tradeBustedJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse trade_busted: %w", err)
	}
	return &event.TradeBusted{ContractID: j.ContractID, MID: j.MID}, nil
}
