package entity

import "time"

// Transmittal records the physical hand-off of documents to accounting.
// The latest row for a liquidation is the active one.
type Transmittal struct {
	ID                     int64                 `json:"id"`
	LiquidationID          string                `json:"liquidation_id"`
	TransmittalReferenceNo string                `json:"transmittal_reference_no"`
	ReceiverName           string                `json:"receiver_name"`
	DocumentLocationID     int64                 `json:"document_location_id"`
	NumberOfFolders        int                   `json:"number_of_folders"`
	FolderLocationNumber   string                `json:"folder_location_number,omitempty"`
	GroupTransmittal       bool                  `json:"group_transmittal"`
	EndorsedBy             string                `json:"endorsed_by"`
	EndorsedAt             time.Time             `json:"endorsed_at"`
	LocationHistory        []TransmittalLocation `json:"location_history,omitempty"`
}

// TransmittalLocation is one entry of a transmittal's ordered location history
type TransmittalLocation struct {
	ID                 int64     `json:"id"`
	TransmittalID      int64     `json:"transmittal_id"`
	DocumentLocationID int64     `json:"document_location_id"`
	MovedBy            string    `json:"moved_by"`
	Remarks            string    `json:"remarks,omitempty"`
	MovedAt            time.Time `json:"moved_at"`
}

// TransmittalFields are the inputs collected at the RC to accounting step
type TransmittalFields struct {
	TransmittalReferenceNo string `json:"transmittal_reference_no" validate:"required,max=64"`
	ReceiverName           string `json:"receiver_name" validate:"required,max=255"`
	DocumentLocationID     int64  `json:"document_location_id" validate:"required,gt=0"`
	NumberOfFolders        int    `json:"number_of_folders" validate:"gte=1"`
	FolderLocationNumber   string `json:"folder_location_number" validate:"max=64"`
	GroupTransmittal       bool   `json:"group_transmittal"`
	Remarks                string `json:"remarks" validate:"max=2000"`
}
