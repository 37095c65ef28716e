package websocket

// Frame types exchanged with the browser. Commands flow client → server,
// events flow server → client.
const (
	CommandPing         = "ping"
	CommandOpenRoom     = "open_room"
	CommandCloseRoom    = "close_room"
	CommandLeaveRoom    = "leave_room"
	CommandSendText     = "send_text"
	CommandSendLocation = "send_location"
	CommandSetDraft     = "set_draft"

	EventPong       = "pong"
	EventRoomList   = "room_list"
	EventMessages   = "messages"
	EventRoomClosed = "room_closed"
	EventStockAlert = "stock_alert"
	EventError      = "error"
)

// Frame is the wire envelope for both directions.
type Frame struct {
	Type   string      `json:"type"`
	RoomID string      `json:"room_id,omitempty"`
	Data   interface{} `json:"data,omitempty"`
}

type SendTextData struct {
	Body string `json:"body"`
}

type SendLocationData struct {
	Latitude    *float64 `json:"latitude"`
	Longitude   *float64 `json:"longitude"`
	AddressName string   `json:"address_name"`
}

type SetDraftData struct {
	Body string `json:"body"`
}

type RoomListData struct {
	Rooms       interface{} `json:"rooms"`
	UnreadCount int         `json:"unread_count"`
}

type StockAlertData struct {
	ListingID string `json:"listing_id"`
	Title     string `json:"title"`
}

type ErrorData struct {
	Message string `json:"message"`
}
