package main

import (
	"sync"
	"time"

	"sambodhan/libs/grievanceapi"
)

const (
	languageCookieName        = "sambodhan_language"
	defaultLanguage           = "en"
	languageCookieMaxAge      = 180 * 24 * time.Hour
	displayTimestampLayout    = "2006-01-02 15:04"
	adminTemplateLoginPath    = "templates/admin/login.tmpl"
	adminTemplateDashboard    = "templates/admin/dashboard.tmpl"
	adminTemplateComplaints   = "templates/admin/complaints.tmpl"
	adminTemplateMisclassify  = "templates/admin/misclassifications.tmpl"
	adminTemplateTeam         = "templates/admin/team.tmpl"
	adminTemplateRegister     = "templates/admin/register.tmpl"
	adminTemplateActivity     = "templates/admin/activity.tmpl"
	citizenTemplateLogin      = "templates/citizen/login.tmpl"
	citizenTemplateSignup     = "templates/citizen/signup.tmpl"
	citizenTemplateDashboard  = "templates/citizen/dashboard.tmpl"
	citizenTemplateFileClaim  = "templates/citizen/file_complaint.tmpl"
	adminLayoutPath           = "templates/admin/layout.tmpl"
	citizenLayoutPath         = "templates/citizen/layout.tmpl"
	complaintMessagePreview   = 160
	dashboardTrendBarMaxWidth = 100
)

var (
	translations = map[string]map[string]string{
		"en": {
			"app_title":                     "Sambodhan",
			"admin_title":                   "Sambodhan Admin",
			"signed_in_as":                  "Signed in as",
			"language_label":                "Language",
			"language_apply":                "Change",
			"language_en":                   "English",
			"language_ne":                   "नेपाली",
			"nav_dashboard":                 "Dashboard",
			"nav_complaints":                "Complaints",
			"nav_misclassifications":        "Misclassifications",
			"nav_team":                      "Team",
			"nav_register":                  "Register admin",
			"nav_activity":                  "Activity",
			"nav_logout":                    "Log out",
			"page_title_login":              "Admin login",
			"page_title_dashboard":          "Dashboard",
			"page_title_complaints":         "Complaints",
			"page_title_misclassifications": "Misclassifications",
			"page_title_team":               "Team",
			"page_title_register":           "Register admin",
			"page_title_activity":           "Activity log",
			"login_title":                   "Administrator login",
			"login_hint":                    "Sign in with your administrator account.",
			"login_email":                   "Email",
			"login_password":                "Password",
			"login_button":                  "Sign in",
			"error_invalid_credentials":     "Invalid email or password.",
			"error_login_failed":            "Login failed.",
			"error_not_admin":               "This account has no administrator access.",
			"error_complaints_load_failed":  "Could not load complaints.",
			"error_status_unknown":          "Unknown status.",
			"error_status_update_failed":    "Status update failed.",
			"error_misclass_load_failed":    "Could not load misclassification reports.",
			"error_misclass_failed":         "Could not submit the report.",
			"error_misclass_delete_failed":  "Could not delete the report.",
			"error_complaint_not_in_scope":  "That complaint is not in your scope.",
			"error_team_load_failed":        "Could not load the team.",
			"error_register_failed":         "Registration failed.",
			"error_export_failed":           "Export failed.",
			"error_activity_load_failed":    "Could not load the activity log.",
			"notice_status_updated":         "Complaint #%d is now %s.",
			"notice_misclass_reported":      "Misclassification reported.",
			"notice_misclass_deleted":       "Report deleted.",
			"notice_admin_registered":       "Administrator %s registered.",
			"notice_export_mailed":          "Export sent to %s.",
			"scope_label":                   "Scope",
			"summary_total":                 "Total complaints",
			"summary_pending":               "Pending",
			"summary_in_process":            "In process",
			"summary_resolved":              "Resolved",
			"summary_rejected":              "Rejected",
			"breakdown_title":               "Issues by department",
			"hotspots_title":                "Location hotspots",
			"quality_title":                 "Quality metrics",
			"benchmark_title":               "Performance benchmark",
			"benchmark_metric":              "Metric",
			"benchmark_yours":               "Yours",
			"benchmark_city":                "City average",
			"trends_daily":                  "Daily (30 days)",
			"trends_weekly":                 "Weekly (12 weeks)",
			"trends_monthly":                "Monthly (12 months)",
			"widget_unavailable":            "Unavailable right now.",
			"widget_refresh":                "Refresh",
			"export_csv":                    "Export CSV",
			"export_pdf":                    "Snapshot PDF",
			"export_email":                  "Email export to me",
			"col_id":                        "ID",
			"col_message":                   "Message",
			"col_department":                "Department",
			"col_urgency":                   "Urgency",
			"col_status":                    "Status",
			"col_submitted":                 "Submitted",
			"col_actions":                   "Actions",
			"col_complaint":                 "Complaint",
			"col_predicted":                 "Model predicted",
			"col_corrected":                 "Corrected",
			"col_reported":                  "Reported",
			"col_name":                      "Name",
			"col_email":                     "Email",
			"col_role":                      "Role",
			"col_location":                  "Location",
			"col_total":                     "Total",
			"col_resolved":                  "Resolved",
			"col_rate":                      "Rate",
			"col_action":                    "Action",
			"col_time":                      "Time",
			"filter_status":                 "Status",
			"filter_search":                 "Search",
			"filter_all":                    "All",
			"filter_apply":                  "Apply",
			"complaints_empty":              "No complaints match these filters.",
			"status_apply":                  "Update",
			"misclass_report_title":         "Report a misclassification",
			"misclass_pick_complaint":       "Select complaint",
			"misclass_keep":                 "Keep current",
			"misclass_submit":               "Report",
			"misclass_delete":               "Delete",
			"misclass_empty":                "No pending reports.",
			"team_empty":                    "No administrators found.",
			"team_view_departments":         "Department admins",
			"register_name":                 "Full name",
			"register_email":                "Email",
			"register_password":             "Password",
			"register_confirm":              "Confirm password",
			"register_role":                 "Role",
			"register_department":           "Department",
			"register_district":             "District",
			"register_municipality":         "Municipality",
			"register_select":               "Select…",
			"register_submit":               "Register",
			"activity_empty":                "No activity recorded.",
			"role_super_admin":              "Super admin",
			"role_municipal_admin":          "Municipal admin",
			"role_department_admin":         "Department admin",
			"role_ward_admin":               "Ward admin",
			"role_citizen":                  "Citizen",
			"citizen_login_title":           "Citizen login",
			"citizen_signup_title":          "Create an account",
			"citizen_phone":                 "Phone",
			"citizen_signup_link":           "Create an account",
			"citizen_login_link":            "Already registered? Sign in",
			"citizen_my_complaints":         "My complaints",
			"citizen_no_complaints":         "You have not filed any complaints yet.",
			"citizen_file_complaint":        "File a complaint",
			"citizen_ward":                  "Ward",
			"citizen_message":               "Describe the problem",
			"citizen_submit":                "Submit",
			"citizen_complaint_filed":       "Complaint #%d filed (%s, %s).",
			"citizen_urgency_unavailable":   "We could not assess the urgency of your complaint. Please try again.",
			"citizen_classifier_failed":     "Automatic classification is unavailable. Please try again later.",
			"citizen_session_expired":       "Your session has expired. Please sign in again.",
			"error_complaint_failed":        "Could not file the complaint. Please try again.",
			"chat_title":                    "Ask Sambodhan",
			"chat_placeholder":              "Type a message…",
			"chat_send":                     "Send",
		},
		"ne": {
			"app_title":                     "सम्बोधन",
			"admin_title":                   "सम्बोधन प्रशासन",
			"signed_in_as":                  "लगइन गरिएको",
			"language_label":                "भाषा",
			"language_apply":                "परिवर्तन",
			"language_en":                   "English",
			"language_ne":                   "नेपाली",
			"nav_dashboard":                 "ड्यासबोर्ड",
			"nav_complaints":                "गुनासोहरू",
			"nav_misclassifications":        "गलत वर्गीकरण",
			"nav_team":                      "टोली",
			"nav_register":                  "प्रशासक दर्ता",
			"nav_activity":                  "गतिविधि",
			"nav_logout":                    "लगआउट",
			"page_title_login":              "प्रशासक लगइन",
			"page_title_dashboard":          "ड्यासबोर्ड",
			"page_title_complaints":         "गुनासोहरू",
			"page_title_misclassifications": "गलत वर्गीकरण",
			"page_title_team":               "टोली",
			"page_title_register":           "प्रशासक दर्ता",
			"page_title_activity":           "गतिविधि लग",
			"login_title":                   "प्रशासक लगइन",
			"login_hint":                    "आफ्नो प्रशासक खाताबाट लगइन गर्नुहोस्।",
			"login_email":                   "इमेल",
			"login_password":                "पासवर्ड",
			"login_button":                  "लगइन",
			"error_invalid_credentials":     "इमेल वा पासवर्ड मिलेन।",
			"error_login_failed":            "लगइन असफल भयो।",
			"error_not_admin":               "यो खातासँग प्रशासक अधिकार छैन।",
			"error_complaints_load_failed":  "गुनासोहरू लोड हुन सकेनन्।",
			"error_status_unknown":          "अज्ञात स्थिति।",
			"error_status_update_failed":    "स्थिति अद्यावधिक असफल भयो।",
			"error_misclass_load_failed":    "गलत वर्गीकरण रिपोर्टहरू लोड हुन सकेनन्।",
			"error_misclass_failed":         "रिपोर्ट पेश हुन सकेन।",
			"error_misclass_delete_failed":  "रिपोर्ट मेटाउन सकिएन।",
			"error_complaint_not_in_scope":  "यो गुनासो तपाईंको क्षेत्रमा पर्दैन।",
			"error_team_load_failed":        "टोली लोड हुन सकेन।",
			"error_register_failed":         "दर्ता असफल भयो।",
			"error_export_failed":           "निर्यात असफल भयो।",
			"error_activity_load_failed":    "गतिविधि लग लोड हुन सकेन।",
			"notice_status_updated":         "गुनासो #%d अब %s छ।",
			"notice_misclass_reported":      "गलत वर्गीकरण रिपोर्ट गरियो।",
			"notice_misclass_deleted":       "रिपोर्ट मेटाइयो।",
			"notice_admin_registered":       "प्रशासक %s दर्ता भयो।",
			"notice_export_mailed":          "निर्यात %s मा पठाइयो।",
			"scope_label":                   "क्षेत्र",
			"summary_total":                 "जम्मा गुनासो",
			"summary_pending":               "बाँकी",
			"summary_in_process":            "प्रक्रियामा",
			"summary_resolved":              "समाधान भएको",
			"summary_rejected":              "अस्वीकृत",
			"breakdown_title":               "विभाग अनुसार समस्या",
			"hotspots_title":                "स्थान हटस्पट",
			"quality_title":                 "गुणस्तर मापन",
			"benchmark_title":               "कार्यसम्पादन तुलना",
			"benchmark_metric":              "मापन",
			"benchmark_yours":               "तपाईंको",
			"benchmark_city":                "शहर औसत",
			"trends_daily":                  "दैनिक (३० दिन)",
			"trends_weekly":                 "साप्ताहिक (१२ हप्ता)",
			"trends_monthly":                "मासिक (१२ महिना)",
			"widget_unavailable":            "अहिले उपलब्ध छैन।",
			"widget_refresh":                "ताजा गर्नुहोस्",
			"export_csv":                    "CSV निर्यात",
			"export_pdf":                    "PDF सारांश",
			"export_email":                  "निर्यात इमेलमा पठाउनुहोस्",
			"col_id":                        "आईडी",
			"col_message":                   "सन्देश",
			"col_department":                "विभाग",
			"col_urgency":                   "अत्यावश्यकता",
			"col_status":                    "स्थिति",
			"col_submitted":                 "पेश मिति",
			"col_actions":                   "कार्य",
			"col_complaint":                 "गुनासो",
			"col_predicted":                 "मोडेल अनुमान",
			"col_corrected":                 "सच्याइएको",
			"col_reported":                  "रिपोर्ट मिति",
			"col_name":                      "नाम",
			"col_email":                     "इमेल",
			"col_role":                      "भूमिका",
			"col_location":                  "स्थान",
			"col_total":                     "जम्मा",
			"col_resolved":                  "समाधान",
			"col_rate":                      "दर",
			"col_action":                    "कार्य",
			"col_time":                      "समय",
			"filter_status":                 "स्थिति",
			"filter_search":                 "खोज",
			"filter_all":                    "सबै",
			"filter_apply":                  "लागू गर्नुहोस्",
			"complaints_empty":              "यी फिल्टरसँग मिल्ने गुनासो छैन।",
			"status_apply":                  "अद्यावधिक",
			"misclass_report_title":         "गलत वर्गीकरण रिपोर्ट गर्नुहोस्",
			"misclass_pick_complaint":       "गुनासो छान्नुहोस्",
			"misclass_keep":                 "हालकै राख्नुहोस्",
			"misclass_submit":               "रिपोर्ट",
			"misclass_delete":               "मेटाउनुहोस्",
			"misclass_empty":                "बाँकी रिपोर्ट छैन।",
			"team_empty":                    "कुनै प्रशासक भेटिएन।",
			"team_view_departments":         "विभागीय प्रशासकहरू",
			"register_name":                 "पूरा नाम",
			"register_email":                "इमेल",
			"register_password":             "पासवर्ड",
			"register_confirm":              "पासवर्ड पुष्टि",
			"register_role":                 "भूमिका",
			"register_department":           "विभाग",
			"register_district":             "जिल्ला",
			"register_municipality":         "नगरपालिका",
			"register_select":               "छान्नुहोस्…",
			"register_submit":               "दर्ता",
			"activity_empty":                "कुनै गतिविधि छैन।",
			"role_super_admin":              "सुपर प्रशासक",
			"role_municipal_admin":          "नगर प्रशासक",
			"role_department_admin":         "विभागीय प्रशासक",
			"role_ward_admin":               "वडा प्रशासक",
			"role_citizen":                  "नागरिक",
			"citizen_login_title":           "नागरिक लगइन",
			"citizen_signup_title":          "खाता बनाउनुहोस्",
			"citizen_phone":                 "फोन",
			"citizen_signup_link":           "खाता बनाउनुहोस्",
			"citizen_login_link":            "पहिले नै दर्ता हुनुहुन्छ? लगइन गर्नुहोस्",
			"citizen_my_complaints":         "मेरा गुनासोहरू",
			"citizen_no_complaints":         "तपाईंले अहिलेसम्म कुनै गुनासो दर्ता गर्नुभएको छैन।",
			"citizen_file_complaint":        "गुनासो दर्ता",
			"citizen_ward":                  "वडा",
			"citizen_message":               "समस्याको विवरण",
			"citizen_submit":                "पेश गर्नुहोस्",
			"citizen_complaint_filed":       "गुनासो #%d दर्ता भयो (%s, %s)।",
			"citizen_urgency_unavailable":   "गुनासोको अत्यावश्यकता निर्धारण हुन सकेन। फेरि प्रयास गर्नुहोस्।",
			"citizen_classifier_failed":     "स्वचालित वर्गीकरण उपलब्ध छैन। पछि प्रयास गर्नुहोस्।",
			"citizen_session_expired":       "सत्र समाप्त भयो। फेरि लगइन गर्नुहोस्।",
			"error_complaint_failed":        "गुनासो दर्ता हुन सकेन। फेरि प्रयास गर्नुहोस्।",
			"chat_title":                    "सम्बोधनलाई सोध्नुहोस्",
			"chat_placeholder":              "सन्देश लेख्नुहोस्…",
			"chat_send":                     "पठाउनुहोस्",
		},
	}

	displayTimeZoneOnce sync.Once
	displayTimeZone     *time.Location
)

type adminBaseViewData struct {
	Title         string
	Lang          string
	Text          map[string]string
	Session       *grievanceapi.Admin
	RoleLabel     string
	CurrentPath   string
	ActiveNav     string
	ErrorMessage  string
	NoticeMessage string
	ShowTeam      bool
	ShowRegister  bool
}

type adminLoginViewData struct {
	adminBaseViewData
	Email string
	Next  string
}

type summaryCardView struct {
	Label string
	Value int
	Class string
}

type breakdownRowView struct {
	Type     string
	Total    int
	Resolved int
	Rate     int
}

type barView struct {
	Label string
	Value float64
	Width int
}

type benchmarkRowView struct {
	Label  string
	Yours  float64
	City   float64
	Better bool
}

type trendView struct {
	Key    string
	Title  string
	Bars   []barView
	Failed bool
}

type widgetState struct {
	Name   string
	Failed bool
}

type adminDashboardViewData struct {
	adminBaseViewData
	ScopeLabel string
	Recomputed bool
	Cards      []summaryCardView
	Breakdown  []breakdownRowView
	Hotspots   []barView
	Quality    []barView
	Benchmark  []benchmarkRowView
	Trends     []trendView
	Widgets    map[string]widgetState
}

type statusOptionView struct {
	Value    int
	Label    string
	Selected bool
}

type complaintRowView struct {
	ID            int
	Message       string
	Department    string
	Urgency       string
	StatusLabel   string
	StatusClass   string
	Submitted     string
	StatusOptions []statusOptionView
}

type adminComplaintsViewData struct {
	adminBaseViewData
	Status        string
	Query         string
	StatusOptions []statusOptionView
	Rows          []complaintRowView
	Pagination    adminPaginationViewData
	ActionNext    string
}

type adminPaginationViewData struct {
	CurrentPage   int
	TotalPages    int
	TotalCount    int
	NextPage      int
	PrevPage      int
	HasNext       bool
	HasPrev       bool
	PageURL       string
	PageSeparator string
}

type misclassificationRowView struct {
	ID                  int
	ComplaintID         int
	PredictedDepartment string
	PredictedUrgency    string
	CorrectDepartment   string
	CorrectUrgency      string
	Reported            string
}

type complaintOptionView struct {
	ID         int
	Label      string
	Department string
	Urgency    string
	Selected   bool
}

type misclassificationFormView struct {
	ComplaintID       string
	CorrectDepartment string
	CorrectUrgency    string
}

type adminMisclassificationsViewData struct {
	adminBaseViewData
	Reports     []misclassificationRowView
	Complaints  []complaintOptionView
	Departments []string
	Urgencies   []string
	Form        misclassificationFormView
	FieldErrors fieldErrors
}

type teamMemberView struct {
	ID        int
	Name      string
	Email     string
	RoleLabel string
	Location  string
	Total     int
	Resolved  int
	Pending   int
	Rate      int
	Failed    bool
	DrillURL  string
}

type adminTeamViewData struct {
	adminBaseViewData
	Members        []teamMemberView
	SubTitle       string
	SubMembers     []teamMemberView
	ShowSubMembers bool
}

type optionView struct {
	Value    string
	Label    string
	Selected bool
}

type adminRegisterViewData struct {
	adminBaseViewData
	Form           registrationForm
	FieldErrors    fieldErrors
	Roles          []optionView
	Departments    []optionView
	Districts      []optionView
	Municipalities []optionView
	LockLocation   bool
}

type activityRowView struct {
	Time      string
	AdminID   int
	RoleLabel string
	Action    string
	Complaint string
	Details   string
}

type adminActivityViewData struct {
	adminBaseViewData
	Rows []activityRowView
}

type citizenBaseViewData struct {
	Title         string
	Lang          string
	Text          map[string]string
	Session       *citizenSession
	CurrentPath   string
	ErrorMessage  string
	NoticeMessage string
}

type citizenLoginViewData struct {
	citizenBaseViewData
	Email string
	Next  string
}

type citizenSignupViewData struct {
	citizenBaseViewData
	Form        citizenSignupForm
	FieldErrors fieldErrors
}

type citizenDashboardViewData struct {
	citizenBaseViewData
	Profile    *grievanceapi.Citizen
	Complaints []complaintRowView
}

type citizenFileComplaintViewData struct {
	citizenBaseViewData
	Form        complaintForm
	FieldErrors fieldErrors
	Districts   []optionView
}
