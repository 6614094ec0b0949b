package model

// ParticipantRecord is a registration row pulled from the source platform,
// optionally enriched with the member's profile details.
type ParticipantRecord struct {
	MemberID  string // source platform member id
	FirstName string
	LastName  string
	Email     string
	Phone     string
	Status    string // source registration status, e.g. "Registered"
}

// Identity returns the fields used to match or create a constituent on the
// target platform.
func (p ParticipantRecord) Identity() Identity {
	return Identity{
		FirstName: p.FirstName,
		LastName:  p.LastName,
		Email:     p.Email,
		Phone:     p.Phone,
	}
}

// Merge fills empty fields from another record. Participant listings on the
// source platform are sparse; member detail lookups carry the full profile.
func (p *ParticipantRecord) Merge(other ParticipantRecord) {
	if p.FirstName == "" {
		p.FirstName = other.FirstName
	}
	if p.LastName == "" {
		p.LastName = other.LastName
	}
	if p.Email == "" {
		p.Email = other.Email
	}
	if p.Phone == "" {
		p.Phone = other.Phone
	}
	if p.Status == "" {
		p.Status = other.Status
	}
}

// Validate reports whether the record is complete enough to sync. A
// participant without a member id cannot be mapped, and one without a name
// cannot be created as a constituent.
func (p ParticipantRecord) Validate() error {
	if p.MemberID == "" {
		return ErrMissingID
	}
	if p.FirstName == "" || p.LastName == "" {
		return ErrMissingName
	}
	return nil
}

// Identity holds the person fields used for constituent matching.
type Identity struct {
	FirstName string
	LastName  string
	Email     string
	Phone     string
}

// FullName returns "First Last" for name-based matching.
func (i Identity) FullName() string {
	switch {
	case i.FirstName == "":
		return i.LastName
	case i.LastName == "":
		return i.FirstName
	default:
		return i.FirstName + " " + i.LastName
	}
}
