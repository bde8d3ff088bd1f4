package grievanceapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Role is the closed set of user roles known to the backend.
type Role string

const (
	RoleCitizen         Role = "citizen"
	RoleDepartmentAdmin Role = "department_admin"
	RoleMunicipalAdmin  Role = "municipal_admin"
	RoleSuperAdmin      Role = "super_admin"
	RoleWardAdmin       Role = "ward_admin"
)

// Roles lists every known role in display order.
var Roles = []Role{RoleSuperAdmin, RoleMunicipalAdmin, RoleDepartmentAdmin, RoleWardAdmin, RoleCitizen}

// ParseRole returns the Role named by raw.
func ParseRole(raw string) (Role, error) {
	role := Role(strings.ToLower(strings.TrimSpace(raw)))
	switch role {
	case RoleCitizen, RoleDepartmentAdmin, RoleMunicipalAdmin, RoleSuperAdmin, RoleWardAdmin:
		return role, nil
	default:
		return "", fmt.Errorf("unknown role %q", raw)
	}
}

// IsAdmin reports whether the role may use the admin dashboard.
func (r Role) IsAdmin() bool {
	switch r {
	case RoleDepartmentAdmin, RoleMunicipalAdmin, RoleSuperAdmin, RoleWardAdmin:
		return true
	case RoleCitizen:
		return false
	default:
		return false
	}
}

// Status is a complaint status. The backend stores it as an integer code.
type Status int

const (
	StatusPending   Status = 0
	StatusInProcess Status = 1
	StatusResolved  Status = 2
	StatusRejected  Status = 3
)

// Statuses lists every status in code order.
var Statuses = []Status{StatusPending, StatusInProcess, StatusResolved, StatusRejected}

var statusLabels = map[Status]string{
	StatusPending:   "Pending",
	StatusInProcess: "In Process",
	StatusResolved:  "Resolved",
	StatusRejected:  "Rejected",
}

// Label returns the display label for s.
func (s Status) Label() string {
	if label, ok := statusLabels[s]; ok {
		return label
	}
	return "Unknown"
}

// Valid reports whether s is one of the four known codes.
func (s Status) Valid() bool {
	_, ok := statusLabels[s]
	return ok
}

// ParseStatus accepts a label in any case or separator style ("RESOLVED",
// "in_process", "In Process") or the integer code as text.
func ParseStatus(raw string) (Status, error) {
	trimmed := strings.TrimSpace(raw)
	if code, err := strconv.Atoi(trimmed); err == nil {
		status := Status(code)
		if !status.Valid() {
			return 0, fmt.Errorf("unknown status code %d", code)
		}
		return status, nil
	}
	key := strings.ToLower(strings.NewReplacer("_", " ", "-", " ").Replace(trimmed))
	key = strings.Join(strings.Fields(key), " ")
	switch key {
	case "pending":
		return StatusPending, nil
	case "in process":
		return StatusInProcess, nil
	case "resolved":
		return StatusResolved, nil
	case "rejected":
		return StatusRejected, nil
	default:
		return 0, fmt.Errorf("unknown status %q", raw)
	}
}

// MarshalJSON writes the integer code.
func (s Status) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Itoa(int(s))), nil
}

// UnmarshalJSON accepts the integer code or a label.
func (s *Status) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*s = StatusPending
		return nil
	}
	var code int
	if err := json.Unmarshal(data, &code); err == nil {
		*s = Status(code)
		return nil
	}
	var label string
	if err := json.Unmarshal(data, &label); err != nil {
		return fmt.Errorf("status: %w", err)
	}
	parsed, err := ParseStatus(label)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Departments are the backend department labels, indexed by code.
var Departments = []string{
	"Municipal Governance & Community Services",
	"Education, Health & Social Welfare",
	"Infrastructure, Utilities & Natural Resources",
	"Security & Law Enforcement",
}

// Urgencies are the backend urgency labels, indexed by code.
var Urgencies = []string{"NORMAL", "URGENT", "HIGHLY URGENT"}

// Label is a classification value that the backend may send either as a
// string or as an integer code into a fixed label table.
type Label string

func decodeLabel(data []byte, table []string) (Label, error) {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return "", nil
	}
	var code int
	if err := json.Unmarshal(data, &code); err == nil {
		if code >= 0 && code < len(table) {
			return Label(table[code]), nil
		}
		return Label(strconv.Itoa(code)), nil
	}
	var text string
	if err := json.Unmarshal(data, &text); err != nil {
		return "", err
	}
	return Label(text), nil
}

// Department is a department label.
type Department Label

// UnmarshalJSON accepts a label or a department code.
func (d *Department) UnmarshalJSON(data []byte) error {
	label, err := decodeLabel(data, Departments)
	if err != nil {
		return fmt.Errorf("department: %w", err)
	}
	*d = Department(label)
	return nil
}

// Urgency is an urgency label.
type Urgency Label

// UnmarshalJSON accepts a label or an urgency code.
func (u *Urgency) UnmarshalJSON(data []byte) error {
	label, err := decodeLabel(data, Urgencies)
	if err != nil {
		return fmt.Errorf("urgency: %w", err)
	}
	*u = Urgency(label)
	return nil
}

// Count is a non-negative tally that tolerates floats, numeric strings and null.
type Count int

// UnmarshalJSON decodes loosely typed counts.
func (c *Count) UnmarshalJSON(data []byte) error {
	*c = looseCount(data)
	return nil
}

func looseNumber(data []byte) float64 {
	data = bytes.TrimSpace(data)
	var number float64
	if err := json.Unmarshal(data, &number); err == nil {
		return number
	}
	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(text), 64); err == nil {
			return parsed
		}
	}
	return 0
}

func looseCount(data []byte) Count {
	return Count(math.Round(looseNumber(data)))
}

// Admin is an administrator account as returned by /admins.
type Admin struct {
	ID               int     `json:"id"`
	Name             string  `json:"name"`
	Email            string  `json:"email,omitempty"`
	Role             Role    `json:"role"`
	Department       *string `json:"department,omitempty"`
	MunicipalityID   *int    `json:"municipality_id,omitempty"`
	WardID           *int    `json:"ward_id,omitempty"`
	DistrictID       *int    `json:"district_id,omitempty"`
	MunicipalityName string  `json:"municipality_name,omitempty"`
	DistrictName     string  `json:"district_name,omitempty"`
	CreatedAt        string  `json:"created_at,omitempty"`
}

// AdminLogin is the /admins/login response.
type AdminLogin struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	Admin       Admin  `json:"admin"`
}

// AdminRegistration is the /admins/register body. Department and
// MunicipalityID are sent as null when unset.
type AdminRegistration struct {
	Name           string  `json:"name"`
	Email          string  `json:"email"`
	Password       string  `json:"password"`
	Role           Role    `json:"role"`
	Department     *string `json:"department"`
	MunicipalityID *int    `json:"municipality_id"`
	DistrictID     *int    `json:"district_id"`
}

// Complaint is a citizen grievance.
type Complaint struct {
	ID             int        `json:"id"`
	CitizenID      *int       `json:"citizen_id,omitempty"`
	Message        string     `json:"message"`
	Department     Department `json:"department"`
	Urgency        Urgency    `json:"urgency"`
	CurrentStatus  Status     `json:"current_status"`
	DistrictID     *int       `json:"district_id,omitempty"`
	MunicipalityID *int       `json:"municipality_id,omitempty"`
	WardID         *int       `json:"ward_id,omitempty"`
	DateSubmitted  string     `json:"date_submitted"`
}

// NewComplaint is the /complaints create body.
type NewComplaint struct {
	Message        string `json:"message"`
	Department     string `json:"department"`
	Urgency        string `json:"urgency"`
	CitizenID      *int   `json:"citizen_id,omitempty"`
	DistrictID     int    `json:"district_id"`
	MunicipalityID int    `json:"municipality_id"`
	WardID         int    `json:"ward_id"`
}

// Misclassification is a pending or reviewed classification correction.
type Misclassification struct {
	ID                       int        `json:"id"`
	ComplaintID              int        `json:"complaint_id"`
	ModelPredictedDepartment Department `json:"model_predicted_department"`
	ModelPredictedUrgency    Urgency    `json:"model_predicted_urgency"`
	CorrectDepartment        Department `json:"correct_department"`
	CorrectUrgency           Urgency    `json:"correct_urgency"`
	ReportedByAdminID        *int       `json:"reported_by_admin_id,omitempty"`
	Reviewed                 bool       `json:"reviewed"`
	CreatedAt                string     `json:"created_at"`
}

// MisclassificationReport carries only the corrections that differ from the
// complaint's current classification.
type MisclassificationReport struct {
	ComplaintID       int    `json:"complaint_id"`
	CorrectDepartment string `json:"correct_department,omitempty"`
	CorrectUrgency    string `json:"correct_urgency,omitempty"`
}

// District is a top-level administrative area.
type District struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Municipality belongs to a district.
type Municipality struct {
	ID         int    `json:"id"`
	Name       string `json:"name"`
	DistrictID int    `json:"district_id"`
}

// Ward belongs to a municipality.
type Ward struct {
	ID             int    `json:"id"`
	WardNumber     int    `json:"ward_number"`
	MunicipalityID int    `json:"municipality_id"`
	Name           string `json:"name,omitempty"`
}

// Citizen is a citizen account as returned by the chatbot auth endpoints.
type Citizen struct {
	ID               int    `json:"id"`
	Name             string `json:"name"`
	Email            string `json:"email"`
	Phone            string `json:"phone,omitempty"`
	WardID           *int   `json:"ward_id,omitempty"`
	MunicipalityID   *int   `json:"municipality_id,omitempty"`
	DistrictID       *int   `json:"district_id,omitempty"`
	MunicipalityName string `json:"municipality_name,omitempty"`
	DistrictName     string `json:"district_name,omitempty"`
}

// CitizenAuth is the login and signup response.
type CitizenAuth struct {
	Success bool     `json:"success"`
	Message string   `json:"message"`
	Token   string   `json:"token"`
	User    *Citizen `json:"user"`
}

// CitizenSignup is the signup body.
type CitizenSignup struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone,omitempty"`
	Password string `json:"password"`
}

// ChatMessage is forwarded to the chatbot.
type ChatMessage struct {
	Message   string         `json:"message"`
	UserID    *int           `json:"user_id,omitempty"`
	SessionID string         `json:"session_id,omitempty"`
	Context   map[string]any `json:"context,omitempty"`
}

// ChatReply is the chatbot answer.
type ChatReply struct {
	Reply    string          `json:"reply"`
	Intent   string          `json:"intent,omitempty"`
	NextStep string          `json:"next_step,omitempty"`
	Data     json.RawMessage `json:"data,omitempty"`
}
