package model

// Medication represents one record in the store. The JSON field names are the
// storage and wire contract consumed by dashboards and automations.
type Medication struct {
	Name              string   `json:"name"`
	Strength          string   `json:"strength"`
	Dose              int      `json:"dose"`
	DosesPerDay       int      `json:"doses_per_day"`
	Timing            []string `json:"timing"`
	DosesAvailable    int      `json:"doses_available"`
	RefillsAvailable  int      `json:"refills_available"`
	DosesPerRefill    int      `json:"doses_per_refill"`
	NextRefill        string   `json:"next_refill"`
	TakenCountPerDose []int    `json:"taken_count_per_dose"`
	AllTaken          bool     `json:"all_taken"`
	Active            bool     `json:"active"`
}

// MedicationPatch is a partial field mapping. It serves as the add payload
// (nil fields take defaults) and as the update merge set (nil fields are
// left untouched).
type MedicationPatch struct {
	Name              *string  `json:"name,omitempty"`
	Strength          *string  `json:"strength,omitempty"`
	Dose              *int     `json:"dose,omitempty"`
	DosesPerDay       *int     `json:"doses_per_day,omitempty"`
	Timing            []string `json:"timing,omitempty"`
	DosesAvailable    *int     `json:"doses_available,omitempty"`
	RefillsAvailable  *int     `json:"refills_available,omitempty"`
	DosesPerRefill    *int     `json:"doses_per_refill,omitempty"`
	NextRefill        *string  `json:"next_refill,omitempty"`
	TakenCountPerDose []int    `json:"taken_count_per_dose,omitempty"`
	AllTaken          *bool    `json:"all_taken,omitempty"`
	Active            *bool    `json:"active,omitempty"`
}

// Snapshot is the persisted document: the full ordered record list,
// restored verbatim at startup.
type Snapshot struct {
	Meds []Medication `json:"meds"`
}
