package models

import (
	"campuslink/internal/apperror"

	"github.com/pkg/errors"
)

// CategoryKey identifies a requirement category. The set is closed; use ParseCategoryKey
// for values coming from requests.
type CategoryKey string

const (
	TechnicalCourses       CategoryKey = "TechnicalCourses"
	StudioCourses          CategoryKey = "StudioCourses"
	GeneralElectives       CategoryKey = "GeneralElectives"
	DataScienceCourses     CategoryKey = "DataScienceCourses"
	CoreCourses            CategoryKey = "CoreCourses"
	JacobsProgrammaticCore CategoryKey = "JacobsProgrammaticCore"
	JacobsTechnicalCore    CategoryKey = "JacobsTechnicalCore"
	SpecializationCourses  CategoryKey = "SpecializationCourses"
)

var categoryNames = map[CategoryKey]string{
	TechnicalCourses:       "Technical Courses",
	StudioCourses:          "Studio Courses",
	GeneralElectives:       "General Electives",
	DataScienceCourses:     "Data Science Courses",
	CoreCourses:            "Core Courses",
	JacobsProgrammaticCore: "Jacobs Programmatic Core",
	JacobsTechnicalCore:    "Jacobs Technical Core",
	SpecializationCourses:  "Specialization Courses",
}

// DisplayName returns the human readable category name.
func (k CategoryKey) DisplayName() string {
	if name, ok := categoryNames[k]; ok {
		return name
	}
	return string(k)
}

func ParseCategoryKey(s string) (CategoryKey, error) {
	k := CategoryKey(s)
	if _, ok := categoryNames[k]; !ok {
		return "", errors.Wrapf(apperror.ErrInvalidInput, "unknown requirement category %q", s)
	}
	return k, nil
}

type ProgramID string

const (
	ProgramMEngCS   ProgramID = "meng-cs"
	ProgramMEngDS   ProgramID = "meng-ds"
	ProgramMEngECE  ProgramID = "meng-ece"
	ProgramMEngORIE ProgramID = "meng-orie"
	ProgramMSDT     ProgramID = "ms-dt"
	ProgramMSISCM   ProgramID = "ms-is-cm"
	ProgramMSISHT   ProgramID = "ms-is-ht"
	ProgramMSISUT   ProgramID = "ms-is-ut"
	ProgramMBA      ProgramID = "mba"
	ProgramLLM      ProgramID = "llm"
)

// Requirement is one category of a program with its required credit total.
type Requirement struct {
	Key         CategoryKey `json:"key"`
	Name        string      `json:"name"`
	Credits     int         `json:"credits"`
	Description string      `json:"description"`
}

type Program struct {
	ID           ProgramID     `json:"id"`
	Name         string        `json:"name"`
	TotalCredits int           `json:"total_credits"`
	Requirements []Requirement `json:"requirements"`
}

// Requirement looks up a category of the program.
func (p Program) Requirement(key CategoryKey) (Requirement, bool) {
	for _, r := range p.Requirements {
		if r.Key == key {
			return r, true
		}
	}
	return Requirement{}, false
}

func (p Program) Has(key CategoryKey) bool {
	_, ok := p.Requirement(key)
	return ok
}

func req(key CategoryKey, credits int, description string) Requirement {
	return Requirement{Key: key, Name: key.DisplayName(), Credits: credits, Description: description}
}

const (
	studioDescription  = "Product Studio (4 credits), Startup/BigCo/PiTech Impact Studio (3 credits), and TECH Studio Elective (1 credit). All Studio courses must be taken for a letter grade."
	campusElectives    = "Select from any offerings on Cornell Tech's campus"
	mengElectives      = "Select from any offerings on Cornell Tech's campus (CS, ECE, ORIE, INFO, LAW, NBAY, TECH, TECHIE). Note: TECHIE 5310: Business Fundamentals (Fall only) must be taken as a prerequisite for all business courses."
	jacobsProgrammatic = "Studio courses (8 credits), Preparing for Spec (1 credit), and Specialization (8 credits)"
	jacobsTechnical    = "Algorithms/Systems (3), Machine Learning (3), HCI & Design (3), and Ethics (1)"
)

func informationSystems(id ProgramID, name, specialization string) Program {
	return Program{
		ID:           id,
		Name:         name,
		TotalCredits: 60,
		Requirements: []Requirement{
			req(JacobsProgrammaticCore, 17, jacobsProgrammatic),
			req(JacobsTechnicalCore, 10, jacobsTechnical),
			req(SpecializationCourses, 8, specialization+" specialization courses"),
			req(GeneralElectives, 25, campusElectives),
		},
	}
}

var programs = map[ProgramID]Program{
	ProgramMEngCS: {
		ID: ProgramMEngCS, Name: "MEng in Computer Science", TotalCredits: 30,
		Requirements: []Requirement{
			req(TechnicalCourses, 18, "15 CS course credits and 3 credits of Technical Electives (5000 and above, choose from CS, ORIE, ECE, and INFO courses)"),
			req(StudioCourses, 8, studioDescription),
			req(GeneralElectives, 4, mengElectives),
		},
	},
	ProgramMEngDS: {
		ID: ProgramMEngDS, Name: "MEng in Data Science & Decision Analytics", TotalCredits: 30,
		Requirements: []Requirement{
			req(DataScienceCourses, 9, "Three courses with at least one from each category"),
			req(TechnicalCourses, 9, "Technical Electives from ECE, CS, ORIE, or INFO courses"),
			req(StudioCourses, 8, studioDescription),
			req(GeneralElectives, 4, mengElectives),
		},
	},
	ProgramMEngECE: {
		ID: ProgramMEngECE, Name: "MEng in Electrical and Computer Engineering", TotalCredits: 30,
		Requirements: []Requirement{
			req(TechnicalCourses, 18, "ML (3 credits), signal processing or systems (3 credits), 6 credits of ECE Electives, and 6 credits of Technical Electives"),
			req(StudioCourses, 8, studioDescription),
			req(GeneralElectives, 4, mengElectives),
		},
	},
	ProgramMEngORIE: {
		ID: ProgramMEngORIE, Name: "MEng in Operations Research and Information Engineering", TotalCredits: 30,
		Requirements: []Requirement{
			req(TechnicalCourses, 18, "Core ORIE courses and technical electives"),
			req(StudioCourses, 8, studioDescription),
			req(GeneralElectives, 4, mengElectives),
		},
	},
	ProgramMSDT: {
		ID: ProgramMSDT, Name: "MS in Design Technology", TotalCredits: 60,
		Requirements: []Requirement{
			req(StudioCourses, 12, "Product Studio (4 credits), Startup Studio (4 credits), and Design Technology Studio (4 credits)"),
			req(TechnicalCourses, 24, "Core technical courses in design and technology"),
			req(GeneralElectives, 24, campusElectives),
		},
	},
	ProgramMSISCM: informationSystems(ProgramMSISCM, "MS in Information Systems (Connective Media)", "Connective Media"),
	ProgramMSISHT: informationSystems(ProgramMSISHT, "MS in Information Systems (Health Tech)", "Health Tech"),
	ProgramMSISUT: informationSystems(ProgramMSISUT, "MS in Information Systems (Urban Tech)", "Urban Tech"),
	ProgramMBA: {
		ID: ProgramMBA, Name: "Johnson Cornell Tech MBA", TotalCredits: 60,
		Requirements: []Requirement{
			req(CoreCourses, 30, "Core business and management courses"),
			req(StudioCourses, 12, "Product Studio (4 credits), Startup Studio (4 credits), and Business Studio (4 credits)"),
			req(GeneralElectives, 18, campusElectives),
		},
	},
	ProgramLLM: {
		ID: ProgramLLM, Name: "LLM in Law, Technology, and Entrepreneurship", TotalCredits: 24,
		Requirements: []Requirement{
			req(CoreCourses, 12, "Core law and technology courses"),
			req(StudioCourses, 8, "Product Studio (4 credits) and Law Studio (4 credits)"),
			req(GeneralElectives, 4, campusElectives),
		},
	},
}

// LookupProgram returns the program catalogue entry for id.
func LookupProgram(id ProgramID) (Program, error) {
	p, ok := programs[id]
	if !ok {
		return Program{}, errors.Wrapf(apperror.ErrInvalidInput, "unknown program %q", id)
	}
	return p, nil
}

func ParseProgramID(s string) (ProgramID, error) {
	id := ProgramID(s)
	if _, err := LookupProgram(id); err != nil {
		return "", err
	}
	return id, nil
}
