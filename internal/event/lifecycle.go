package event

// WebsocketStarting signals a fresh feed connection: everything mirrored
// before it may be stale and a full reload is required.
type WebsocketStarting struct{}

func (e *WebsocketStarting) Kind() Type { return TypeWebsocketStarting }

// ExposureReports is informational only.
type ExposureReports struct{}

func (e *ExposureReports) Kind() Type { return TypeExposureReports }

// Info covers the structurally ignored notification kinds: contact changes
// and operation-success acknowledgements. RawType preserves the wire name
// for logging.
type Info struct {
	Category Type // TypeContactInfo or TypeSuccess
	RawType  string
}

func (e *Info) Kind() Type { return e.Category }

// Unrecognized is any type string the parser does not know. It is logged
// and otherwise ignored.
type Unrecognized struct {
	RawType string
}

func (e *Unrecognized) Kind() Type { return TypeUnknown }
