package protocol

import (
	"encoding/json"

	"github.com/example/attendgate/internal/persistence"
)

// Client → server message types.
const (
	TypeAuth               = "AUTH"
	TypeGetDepartments     = "GET_DEPARTMENTS"
	TypeGetActiveEmployees = "GET_ACTIVE_EMPLOYEES"
	TypeGetEmployeesAtDate = "GET_EMPLOYEES_AT_DATE"
	TypeGetAttendanceStats = "GET_ATTENDANCE_STATS"
)

// Server → client message types.
const (
	TypeAuthSuccess            = "AUTH_SUCCESS"
	TypeAuthFailed             = "AUTH_FAILED"
	TypeError                  = "ERROR"
	TypeEmployeePresenceUpdate = "EMPLOYEE_PRESENCE_UPDATE"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// ClientMessage is the frame viewers send. Token is only present on AUTH;
// every other type carries a RequestID so the response can be correlated.
type ClientMessage struct {
	Type      string          `json:"type"`
	Token     string          `json:"token,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	RequestID string          `json:"requestId,omitempty"`
}

// Response is the correlated reply to a pull request.
type Response struct {
	Type      string          `json:"type"`
	Status    string          `json:"status"`
	RequestID string          `json:"requestId"`
	Data      json.RawMessage `json:"data,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// Notice is an uncorrelated server frame: auth outcomes and errors.
type Notice struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
}

// Broadcast is the unsolicited presence-update envelope. It carries no
// requestId so correlators route it to their event channel.
type Broadcast struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// PresenceUpdate is the payload of an EMPLOYEE_PRESENCE_UPDATE frame.
type PresenceUpdate struct {
	Status   string               `json:"status"`
	Employee persistence.Employee `json:"employee"`
}

// ResponseType derives the reply type for a request type, e.g.
// GET_DEPARTMENTS → GET_DEPARTMENTS_RESPONSE.
func ResponseType(requestType string) string {
	return requestType + "_RESPONSE"
}

func NewSuccessResponse(requestType, requestID string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Response{
		Type:      ResponseType(requestType),
		Status:    StatusSuccess,
		RequestID: requestID,
		Data:      raw,
	})
}

func NewErrorResponse(requestType, requestID, message string) ([]byte, error) {
	return json.Marshal(Response{
		Type:      ResponseType(requestType),
		Status:    StatusError,
		RequestID: requestID,
		Error:     message,
	})
}

func NewNotice(noticeType, message string) ([]byte, error) {
	return json.Marshal(Notice{Type: noticeType, Message: message})
}

func NewBroadcast(payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Broadcast{Type: TypeEmployeePresenceUpdate, Payload: raw})
}
