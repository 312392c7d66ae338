// Package order models the order workflow: the dialogue stage machine, the
// in-progress draft being assembled for a session, and the append-only
// ledger completed orders are written to.
package order

// Stage is the dialogue controller's position in the order state machine.
type Stage int

const (
	StageIdle Stage = iota
	StageItemInquiry
	StagePendingConfirmation
	StageCollectingRFID
	StageCollectingBuilding
	StageCollectingPhone
	StageCollectingSpecial
)

func (s Stage) String() string {
	switch s {
	case StageIdle:
		return "idle"
	case StageItemInquiry:
		return "item_inquiry"
	case StagePendingConfirmation:
		return "pending_confirmation"
	case StageCollectingRFID:
		return "collecting_rfid"
	case StageCollectingBuilding:
		return "collecting_building"
	case StageCollectingPhone:
		return "collecting_phone"
	case StageCollectingSpecial:
		return "collecting_special"
	}
	return "unknown"
}

// Collecting reports whether the stage is waiting on a required field.
func (s Stage) Collecting() bool {
	return s >= StageCollectingRFID && s <= StageCollectingSpecial
}

// InProgress reports whether an order flow is active. A session's draft is
// non-nil exactly when this holds.
func (s Stage) InProgress() bool {
	return s == StagePendingConfirmation || s.Collecting()
}

// Field names one required order field.
type Field string

const (
	FieldRFID     Field = "rfid"
	FieldBuilding Field = "building"
	FieldPhone    Field = "phone"
	FieldSpecial  Field = "special_request"
)

// CollectionOrder is the sequence fields are requested in.
var CollectionOrder = []Field{FieldRFID, FieldBuilding, FieldPhone, FieldSpecial}

var stageForField = map[Field]Stage{
	FieldRFID:     StageCollectingRFID,
	FieldBuilding: StageCollectingBuilding,
	FieldPhone:    StageCollectingPhone,
	FieldSpecial:  StageCollectingSpecial,
}

// StageFor returns the collecting stage that requests f.
func StageFor(f Field) Stage { return stageForField[f] }

// FieldFor returns the field a collecting stage is waiting on.
func FieldFor(s Stage) (Field, bool) {
	for f, st := range stageForField {
		if st == s {
			return f, true
		}
	}
	return "", false
}
