package models

import (
	"database/sql/driver"
	"time"

	"gorm.io/gorm"
)

// Base model with common fields
type BaseModel struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}

// JSON field type for GORM
type JSON []byte

func (j JSON) Value() (driver.Value, error) {
	if j.IsNull() {
		return nil, nil
	}
	return string(j), nil
}

func (j *JSON) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	s, ok := value.([]byte)
	if !ok {
		return nil
	}
	*j = append((*j)[0:0], s...)
	return nil
}

func (j JSON) MarshalJSON() ([]byte, error) {
	if j == nil {
		return []byte("null"), nil
	}
	return j, nil
}

func (j *JSON) UnmarshalJSON(data []byte) error {
	if j == nil {
		return nil
	}
	*j = append((*j)[0:0], data...)
	return nil
}

func (j JSON) IsNull() bool {
	return len(j) == 0 || string(j) == "null"
}

// UserRole identifies the kind of account behind a login.
type UserRole string

const (
	RoleAdmin      UserRole = "admin"
	RoleTherapist  UserRole = "therapist"
	RoleIndividual UserRole = "individual"
	RoleCompany    UserRole = "company"
)

// SlotStatus is the availability state of a schedule slot.
type SlotStatus string

const (
	SlotAvailable SlotStatus = "Available"
	SlotBooked    SlotStatus = "Booked"
	SlotSelected  SlotStatus = "Selected"
)

// IsValid reports whether s is one of the known slot states.
func (s SlotStatus) IsValid() bool {
	switch s {
	case SlotAvailable, SlotBooked, SlotSelected:
		return true
	}
	return false
}

// DayOfWeek uses the stored string form ("Monday".."Sunday").
type DayOfWeek string

const (
	Monday    DayOfWeek = "Monday"
	Tuesday   DayOfWeek = "Tuesday"
	Wednesday DayOfWeek = "Wednesday"
	Thursday  DayOfWeek = "Thursday"
	Friday    DayOfWeek = "Friday"
	Saturday  DayOfWeek = "Saturday"
	Sunday    DayOfWeek = "Sunday"
)

// DayOfWeekFromTime derives the stored weekday string for t.
func DayOfWeekFromTime(t time.Time) DayOfWeek {
	return DayOfWeek(t.Weekday().String())
}

// IsValid reports whether d is a known weekday string.
func (d DayOfWeek) IsValid() bool {
	switch d {
	case Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday:
		return true
	}
	return false
}

// SessionType is the medium of a one-on-one appointment.
type SessionType string

const (
	SessionAudio      SessionType = "Audio"
	SessionVideo      SessionType = "Video"
	SessionAudioVideo SessionType = "Audio/Video"
	SessionText       SessionType = "Text"
	SessionTest       SessionType = "Test"
)

func (s SessionType) IsValid() bool {
	switch s {
	case SessionAudio, SessionVideo, SessionAudioVideo, SessionText, SessionTest:
		return true
	}
	return false
}

// AppointmentStatus is the lifecycle state of an appointment.
type AppointmentStatus string

const (
	AppointmentUpcoming    AppointmentStatus = "Upcoming"
	AppointmentCompleted   AppointmentStatus = "Completed"
	AppointmentCancelled   AppointmentStatus = "Cancelled"
	AppointmentRescheduled AppointmentStatus = "Rescheduled"
)

func (s AppointmentStatus) IsValid() bool {
	switch s {
	case AppointmentUpcoming, AppointmentCompleted, AppointmentCancelled, AppointmentRescheduled:
		return true
	}
	return false
}

// NoteType categorizes therapist annotations on an appointment.
type NoteType string

const (
	NoteSessionNotes      NoteType = "Session Notes"
	NotePriorities        NoteType = "Priorities"
	NoteChallenges        NoteType = "Challenges"
	NoteSuggestedSessions NoteType = "Suggested Sessions"
	NoteNextAppointment   NoteType = "Next Appointment"
)

func (n NoteType) IsValid() bool {
	switch n {
	case NoteSessionNotes, NotePriorities, NoteChallenges, NoteSuggestedSessions, NoteNextAppointment:
		return true
	}
	return false
}

// User model (one row per login regardless of role)
type User struct {
	BaseModel
	Email                  string     `json:"email" gorm:"size:255;not null;uniqueIndex"`
	Password               string     `json:"-" gorm:"size:255;not null"`
	UserName               string     `json:"user_name" gorm:"size:100"`
	Phone                  string     `json:"phone" gorm:"size:20"`
	Role                   UserRole   `json:"role" gorm:"size:50;not null;default:'individual'"`
	Status                 string     `json:"status" gorm:"size:50;not null;default:'active'"` // active, inactive, suspended
	Avatar                 string     `json:"avatar" gorm:"size:500"`
	EmailVerified          bool       `json:"email_verified" gorm:"default:false"`
	OTP                    string     `json:"-" gorm:"size:10"`
	OTPExpiresAt           *time.Time `json:"-"`
	ResetPasswordToken     string     `json:"-" gorm:"size:255"`
	ResetPasswordExpiresAt *time.Time `json:"-"`
	CompanyID              *uint      `json:"company_id"`

	// Relationships
	Company    *Company    `json:"company,omitempty" gorm:"foreignKey:CompanyID"`
	Therapist  *Therapist  `json:"therapist,omitempty" gorm:"foreignKey:UserID"`
	Individual *Individual `json:"individual,omitempty" gorm:"foreignKey:UserID"`
}

// Therapist profile, owned by a User with role therapist
type Therapist struct {
	BaseModel
	UserID         uint   `json:"user_id" gorm:"uniqueIndex;not null"`
	FirstName      string `json:"first_name" gorm:"size:100"`
	LastName       string `json:"last_name" gorm:"size:100"`
	Age            int    `json:"age"`
	GenderIdentity string `json:"gender_identity" gorm:"size:50"`
	Nationality    string `json:"nationality" gorm:"size:100"`
	Title          string `json:"title" gorm:"size:100"`
	Specialization string `json:"specialization" gorm:"size:255"`
	Expertise      JSON   `json:"expertise" gorm:"type:json"`
	CareerJourney  string `json:"career_journey" gorm:"type:text"`
	ProfileImage   string `json:"profile_image" gorm:"size:500"`
	Verified       bool   `json:"verified" gorm:"default:true"`

	// Relationships
	User         User           `json:"user,omitempty" gorm:"foreignKey:UserID"`
	Slots        []ScheduleSlot `json:"slots,omitempty" gorm:"foreignKey:TherapistID"`
	Appointments []Appointment  `json:"appointments,omitempty" gorm:"foreignKey:TherapistID"`
}

// Individual profile (a patient), owned by a User with role individual
type Individual struct {
	BaseModel
	UserID              uint   `json:"user_id" gorm:"uniqueIndex;not null"`
	FirstName           string `json:"first_name" gorm:"size:100"`
	LastName            string `json:"last_name" gorm:"size:100"`
	Age                 int    `json:"age"`
	GenderIdentity      string `json:"gender_identity" gorm:"size:50"`
	TherapistPreference JSON   `json:"therapist_preference" gorm:"type:json"`
	ReasonForTherapy    JSON   `json:"reason_for_therapy" gorm:"type:json"`

	// Relationships
	User         User          `json:"user,omitempty" gorm:"foreignKey:UserID"`
	Appointments []Appointment `json:"appointments,omitempty" gorm:"foreignKey:PatientID"`
}

// Company model; companies register employees as individual users
type Company struct {
	BaseModel
	Name     string `json:"name" gorm:"size:255;not null"`
	Website  string `json:"website" gorm:"size:255"`
	Industry string `json:"industry" gorm:"size:100"`
	Address  string `json:"address" gorm:"size:500"`

	// Relationships
	Users []User `json:"users,omitempty" gorm:"foreignKey:CompanyID"`
}

// ScheduleSlot is a single bookable time window for a therapist.
// Date is nil for weekly recurring slots; range-generated slots carry the
// full UTC timestamp of the slot start.
type ScheduleSlot struct {
	BaseModel
	TherapistID     uint       `json:"therapist_id" gorm:"not null;index:idx_slot_lookup"`
	DayOfWeek       DayOfWeek  `json:"day_of_week" gorm:"size:20;not null;index:idx_slot_lookup"`
	Date            *time.Time `json:"date"`
	StartTime       string     `json:"start_time" gorm:"size:5;not null;index:idx_slot_lookup"` // "HH:MM"
	EndTime         string     `json:"end_time" gorm:"size:5;not null"`                         // "HH:MM"
	Status          SlotStatus `json:"status" gorm:"size:20;not null;default:'Available'"`
	AudioFee        float64    `json:"audio_fee" gorm:"type:decimal(10,2);default:0"`
	VideoFee        float64    `json:"video_fee" gorm:"type:decimal(10,2);default:0"`
	AudioVideoFee   float64    `json:"audio_video_fee" gorm:"type:decimal(10,2);default:0"`
	TextFee         float64    `json:"text_fee" gorm:"type:decimal(10,2);default:0"`
	GapBetweenSlots int        `json:"gap_between_slots" gorm:"default:0"` // minutes, generation-time only

	// Relationships
	Therapist Therapist `json:"therapist,omitempty" gorm:"foreignKey:TherapistID"`
}

// Appointment is a one-on-one session between a therapist and a patient.
type Appointment struct {
	BaseModel
	StartTime      time.Time         `json:"start_time" gorm:"not null;index"`
	EndTime        time.Time         `json:"end_time" gorm:"not null"`
	SessionType    SessionType       `json:"session_type" gorm:"size:20;not null;default:'Audio/Video'"`
	Status         AppointmentStatus `json:"status" gorm:"size:20;not null;default:'Upcoming'"`
	Duration       *int              `json:"duration"` // minutes
	Summary        string            `json:"summary" gorm:"type:text"`
	ConsultancyFee float64           `json:"consultancy_fee" gorm:"type:decimal(10,2);default:0"`
	TherapistID    uint              `json:"therapist_id" gorm:"not null;index"`
	PatientID      uint              `json:"patient_id" gorm:"not null;index"`

	// Relationships
	Therapist Therapist  `json:"therapist,omitempty" gorm:"foreignKey:TherapistID"`
	Patient   Individual `json:"patient,omitempty" gorm:"foreignKey:PatientID"`
	Notes     []Note     `json:"notes,omitempty" gorm:"foreignKey:AppointmentID;constraint:OnDelete:CASCADE"`
}

// Note is an append-only therapist annotation on an appointment.
type Note struct {
	BaseModel
	Type          NoteType `json:"type" gorm:"size:50;not null;default:'Session Notes'"`
	Content       string   `json:"content" gorm:"type:text;not null"`
	AppointmentID uint     `json:"appointment_id" gorm:"not null;index"`
	CreatedByID   uint     `json:"created_by_id" gorm:"not null"`

	// Relationships
	Appointment Appointment `json:"appointment,omitempty" gorm:"foreignKey:AppointmentID"`
	CreatedBy   Therapist   `json:"created_by,omitempty" gorm:"foreignKey:CreatedByID"`
}

// GroupTherapy is a fixed-capacity group session led by a moderator therapist.
type GroupTherapy struct {
	BaseModel
	Title               string    `json:"title" gorm:"size:255;not null"`
	NumberOfSessions    int       `json:"number_of_sessions" gorm:"default:1"`
	DiscussionTopic     string    `json:"discussion_topic" gorm:"size:100;index"`
	AboutTheSession     string    `json:"about_the_session" gorm:"type:text"`
	Date                time.Time `json:"date" gorm:"not null;index"`
	SessionPrice        float64   `json:"session_price" gorm:"type:decimal(10,2);default:0"`
	ParticipantCapacity int       `json:"participant_capacity" gorm:"not null"`
	ModeratorID         uint      `json:"moderator_id" gorm:"not null;index"`

	// Relationships
	Moderator    Therapist    `json:"moderator,omitempty" gorm:"foreignKey:ModeratorID"`
	Participants []Individual `json:"participants,omitempty" gorm:"many2many:group_therapy_participants"`
}

// CurrentParticipantCount is recomputed from the loaded association;
// callers must preload Participants first.
func (g *GroupTherapy) CurrentParticipantCount() int {
	return len(g.Participants)
}

// IsFull reports whether the loaded participant set has reached capacity.
func (g *GroupTherapy) IsFull() bool {
	return g.CurrentParticipantCount() >= g.ParticipantCapacity
}

// Notification model
type Notification struct {
	BaseModel
	UserID   uint       `json:"user_id" gorm:"not null;index"`
	Title    string     `json:"title" gorm:"size:255;not null"`
	Message  string     `json:"message" gorm:"type:text;not null"`
	Type     string     `json:"type" gorm:"size:50;not null"` // info, warning, error, success
	Read     bool       `json:"read" gorm:"default:false"`
	ReadAt   *time.Time `json:"read_at"`
	Channels JSON       `json:"channels" gorm:"type:json"`
	Data     JSON       `json:"data" gorm:"type:json"`

	// Relationships
	User User `json:"user,omitempty" gorm:"foreignKey:UserID"`
}

// Log model for activity tracking
type ActivityLog struct {
	BaseModel
	UserID     uint   `json:"user_id"`
	Action     string `json:"action" gorm:"size:100;not null"`
	Resource   string `json:"resource" gorm:"size:100;not null"`
	ResourceID uint   `json:"resource_id"`
	Details    JSON   `json:"details" gorm:"type:json"`
	IPAddress  string `json:"ip_address" gorm:"size:45"`
	UserAgent  string `json:"user_agent" gorm:"size:500"`

	// Relationships
	User User `json:"user,omitempty" gorm:"foreignKey:UserID"`
}

// LogArchive model for tracking archived logs
type LogArchive struct {
	BaseModel
	FileName    string    `json:"file_name" gorm:"size:255;not null"`
	S3Key       string    `json:"s3_key" gorm:"size:500;not null"`
	StartDate   time.Time `json:"start_date" gorm:"not null"`
	EndDate     time.Time `json:"end_date" gorm:"not null"`
	RecordCount int       `json:"record_count" gorm:"not null"`
	FileSize    int64     `json:"file_size" gorm:"not null"`
	Status      string    `json:"status" gorm:"size:50;not null;default:'pending'"` // pending, completed, failed
	Error       string    `json:"error" gorm:"type:text"`
}
