package enums

import "fmt"

// Section is the scout-troop age section a block or scout belongs to.
type Section string

const (
	SectionLobitos      Section = "lobitos"
	SectionExploradores Section = "exploradores"
	SectionPioneiros    Section = "pioneiros"
	SectionCaminheiros  Section = "caminheiros"
	SectionReserva      Section = "reserva"
)

var validSections = []Section{
	SectionLobitos,
	SectionExploradores,
	SectionPioneiros,
	SectionCaminheiros,
	SectionReserva,
}

// Sections returns the canonical section set, in display order.
func Sections() []Section {
	out := make([]Section, len(validSections))
	copy(out, validSections)
	return out
}

func (s Section) IsValid() bool {
	for _, candidate := range validSections {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseSection converts raw input into Section.
func ParseSection(value string) (Section, error) {
	for _, candidate := range validSections {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid section %q", value)
}
