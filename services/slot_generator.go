package services

import (
	"fmt"
	"time"

	"theracare_go/models"
)

// SlotFees carries the per-session-type fee schedule applied to every
// generated slot.
type SlotFees struct {
	AudioFee      float64 `json:"audio_fee"`
	VideoFee      float64 `json:"video_fee"`
	AudioVideoFee float64 `json:"audio_video_fee"`
	TextFee       float64 `json:"text_fee"`
}

// SlotGenerationRequest describes a date-range expansion: every calendar day
// in [StartDate, EndDate] (UTC) whose weekday is in Weekdays gets slots of
// SlotDuration minutes walked from StartTime, spaced SlotDuration+Gap apart,
// until the next slot would pass EndTime.
type SlotGenerationRequest struct {
	StartDate    time.Time
	EndDate      time.Time
	Weekdays     []models.DayOfWeek
	StartTime    string // "HH:MM"
	EndTime      string // "HH:MM"
	SlotDuration int    // minutes
	Gap          int    // minutes
	Fees         SlotFees
}

// GenerateSlots deterministically expands req into slot descriptors. It has
// no side effects; persistence and collision handling belong to the caller.
func GenerateSlots(therapistID uint, req SlotGenerationRequest) ([]models.ScheduleSlot, error) {
	if req.SlotDuration <= 0 {
		return nil, fmt.Errorf("%w: slot duration must be positive", ErrBadRequest)
	}
	if req.Gap < 0 {
		return nil, fmt.Errorf("%w: gap between slots cannot be negative", ErrBadRequest)
	}

	startDay := truncateToUTCDay(req.StartDate)
	endDay := truncateToUTCDay(req.EndDate)
	if startDay.After(endDay) {
		return nil, fmt.Errorf("%w: start date is after end date", ErrBadRequest)
	}

	windowStart, err := ParseClock(req.StartTime)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid start time %q", ErrBadRequest, req.StartTime)
	}
	windowEnd, err := ParseClock(req.EndTime)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid end time %q", ErrBadRequest, req.EndTime)
	}
	if windowStart >= windowEnd {
		return nil, fmt.Errorf("%w: start time must be before end time", ErrBadRequest)
	}

	wanted := make(map[models.DayOfWeek]bool, len(req.Weekdays))
	for _, d := range req.Weekdays {
		if !d.IsValid() {
			return nil, fmt.Errorf("%w: unknown day of week %q", ErrBadRequest, d)
		}
		wanted[d] = true
	}

	var slots []models.ScheduleSlot
	for day := startDay; !day.After(endDay); day = day.AddDate(0, 0, 1) {
		weekday := models.DayOfWeekFromTime(day)
		if len(wanted) > 0 && !wanted[weekday] {
			continue
		}

		for cursor := windowStart; cursor+req.SlotDuration <= windowEnd; cursor += req.SlotDuration + req.Gap {
			slotStart := day.Add(time.Duration(cursor) * time.Minute)
			slots = append(slots, models.ScheduleSlot{
				TherapistID:     therapistID,
				DayOfWeek:       weekday,
				Date:            &slotStart,
				StartTime:       FormatClock(cursor),
				EndTime:         FormatClock(cursor + req.SlotDuration),
				Status:          models.SlotAvailable,
				AudioFee:        req.Fees.AudioFee,
				VideoFee:        req.Fees.VideoFee,
				AudioVideoFee:   req.Fees.AudioVideoFee,
				TextFee:         req.Fees.TextFee,
				GapBetweenSlots: req.Gap,
			})
		}
	}

	if len(slots) == 0 {
		return nil, fmt.Errorf("%w: no slots generatable for the given range", ErrBadRequest)
	}
	return slots, nil
}

// ParseClock converts "HH:MM" to minutes after midnight.
func ParseClock(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, err
	}
	return t.Hour()*60 + t.Minute(), nil
}

// FormatClock converts minutes after midnight back to "HH:MM".
func FormatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

func truncateToUTCDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
