package event

// Type discriminates feed event payloads.
type Type int32

const (
	TypeUnknown Type = iota
	TypeBookTop
	TypeActionReport
	TypeHeartbeat
	TypeCollateralBalanceUpdate
	TypeOpenPositionsUpdate
	TypeContractAdded
	TypeContractRemoved
	TypeTradeBusted
	TypeWebsocketStarting
	TypeExposureReports
	TypeContactInfo
	TypeSuccess
)

// Event is the interface all decoded feed payloads implement. The dispatcher
// switches on the concrete type; Kind exists for logging and metrics labels.
type Event interface {
	Kind() Type
}

func (t Type) String() string {
	switch t {
	case TypeBookTop:
		return "book_top"
	case TypeActionReport:
		return "action_report"
	case TypeHeartbeat:
		return "heartbeat"
	case TypeCollateralBalanceUpdate:
		return "collateral_balance_update"
	case TypeOpenPositionsUpdate:
		return "open_positions_update"
	case TypeContractAdded:
		return "contract_added"
	case TypeContractRemoved:
		return "contract_removed"
	case TypeTradeBusted:
		return "trade_busted"
	case TypeWebsocketStarting:
		return "websocket_starting"
	case TypeExposureReports:
		return "exposure_reports"
	case TypeContactInfo:
		return "contact"
	case TypeSuccess:
		return "success"
	default:
		return "unknown"
	}
}
