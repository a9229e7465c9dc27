// file: internals/features/housing/model/housing_model.go
package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"dormitory_backend/internals/helpers/apperr"
)

/*
  Read models of the housing tables. Rooms, student profiles and vehicle
  registrations are maintained by the CRUD layer; billing only reads them.
*/

type StudentStatus string

const (
	StudentStatusRenting    StudentStatus = "RENTING"
	StudentStatusApplying   StudentStatus = "APPLYING"
	StudentStatusCheckedOut StudentStatus = "CHECKED_OUT"
)

type VehicleType string

const (
	VehicleTypeBicycle      VehicleType = "BICYCLE"
	VehicleTypeMotorbike    VehicleType = "MOTORBIKE"
	VehicleTypeElectricBike VehicleType = "ELECTRIC_BIKE"
	VehicleTypeCar          VehicleType = "CAR"
)

var ErrUnknownVehicleType = apperr.Validation("unknown_vehicle_type", "unknown vehicle type")

func ParseVehicleType(s string) (VehicleType, error) {
	switch v := VehicleType(strings.ToUpper(strings.TrimSpace(s))); v {
	case VehicleTypeBicycle, VehicleTypeMotorbike, VehicleTypeElectricBike, VehicleTypeCar:
		return v, nil
	}
	return "", ErrUnknownVehicleType.WithField("vehicle_type").WithDetail("%q", s)
}

type Room struct {
	RoomID        uint64          `json:"room_id" gorm:"column:room_id;primaryKey;autoIncrement"`
	RoomNumber    string          `json:"room_number" gorm:"column:room_number;type:varchar(20);not null"`
	RoomBuilding  string          `json:"room_building" gorm:"column:room_building;type:varchar(60)"`
	RoomFee       decimal.Decimal `json:"room_fee" gorm:"column:room_fee;type:numeric(14,2);not null;default:0"`
	RoomCreatedAt time.Time       `json:"room_created_at" gorm:"column:room_created_at;autoCreateTime"`
}

func (Room) TableName() string { return "rooms" }

type StudentProfile struct {
	StudentProfileID        uint64        `json:"student_profile_id" gorm:"column:student_profile_id;primaryKey;autoIncrement"`
	StudentProfileFullName  string        `json:"student_profile_full_name" gorm:"column:student_profile_full_name;type:varchar(120);not null"`
	StudentProfileEmail     *string       `json:"student_profile_email,omitempty" gorm:"column:student_profile_email;type:varchar(120)"`
	StudentProfilePhone     *string       `json:"student_profile_phone,omitempty" gorm:"column:student_profile_phone;type:varchar(30)"`
	StudentProfileStatus    StudentStatus `json:"student_profile_status" gorm:"column:student_profile_status;type:varchar(20);not null;index"`
	StudentProfileRoomID    *uint64       `json:"student_profile_room_id,omitempty" gorm:"column:student_profile_room_id;index"`
	StudentProfileCreatedAt time.Time     `json:"student_profile_created_at" gorm:"column:student_profile_created_at;autoCreateTime"`

	Room *Room `json:"room,omitempty" gorm:"foreignKey:StudentProfileRoomID;references:RoomID"`
}

func (StudentProfile) TableName() string { return "student_profiles" }

type VehicleRegistration struct {
	VehicleRegistrationID        uint64      `json:"vehicle_registration_id" gorm:"column:vehicle_registration_id;primaryKey;autoIncrement"`
	VehicleRegistrationStudentID uint64      `json:"vehicle_registration_student_id" gorm:"column:vehicle_registration_student_id;not null;index"`
	VehicleRegistrationType      VehicleType `json:"vehicle_registration_type" gorm:"column:vehicle_registration_type;type:varchar(20);not null"`
	VehicleRegistrationPlate     string      `json:"vehicle_registration_plate" gorm:"column:vehicle_registration_plate;type:varchar(20)"`
	VehicleRegistrationIsActive  bool        `json:"vehicle_registration_is_active" gorm:"column:vehicle_registration_is_active;not null"`
	VehicleRegistrationCreatedAt time.Time   `json:"vehicle_registration_created_at" gorm:"column:vehicle_registration_created_at;autoCreateTime"`
}

func (VehicleRegistration) TableName() string { return "vehicle_registrations" }
