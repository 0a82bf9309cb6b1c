package domain

// Company size buckets.
const (
	CompanySizeStartup    = "startup"
	CompanySizeMidSize    = "mid-size"
	CompanySizeEnterprise = "enterprise"
)

// InferCompanySize buckets an employee count. Unknown or zero counts are
// treated as a startup.
func InferCompanySize(employees int) string {
	switch {
	case employees < 100:
		return CompanySizeStartup
	case employees < 1000:
		return CompanySizeMidSize
	default:
		return CompanySizeEnterprise
	}
}

// CompanyIntelligence is the structured research used to seed a persona.
// Every field is optional except Company.Name.
type CompanyIntelligence struct {
	Company   CompanyProfile `json:"company" yaml:"company"`
	Insights  Insights       `json:"insights" yaml:"insights"`
	Financial *Financial     `json:"financial,omitempty" yaml:"financial,omitempty"`
	Codebase  *Codebase      `json:"codebase,omitempty" yaml:"codebase,omitempty"`
	Contacts  []Contact      `json:"contacts,omitempty" yaml:"contacts,omitempty"`
	Sources   []string       `json:"sources,omitempty" yaml:"sources,omitempty"`
}

type CompanyProfile struct {
	Name         string `json:"name" yaml:"name"`
	Domain       string `json:"domain,omitempty" yaml:"domain,omitempty"`
	Industry     string `json:"industry,omitempty" yaml:"industry,omitempty"`
	Size         string `json:"size,omitempty" yaml:"size,omitempty"`
	Headquarters string `json:"headquarters,omitempty" yaml:"headquarters,omitempty"`
}

type Insights struct {
	PainPoints      []string         `json:"painPoints,omitempty" yaml:"painPoints,omitempty"`
	Priorities      []string         `json:"priorities,omitempty" yaml:"priorities,omitempty"`
	BuyingSignals   []string         `json:"buyingSignals,omitempty" yaml:"buyingSignals,omitempty"`
	Concerns        []string         `json:"concerns,omitempty" yaml:"concerns,omitempty"`
	DecisionFactors *DecisionFactors `json:"decisionFactors,omitempty" yaml:"decisionFactors,omitempty"`
}

type Financial struct {
	Revenue                       float64 `json:"revenue,omitempty" yaml:"revenue,omitempty"`
	RevenueGrowth                 float64 `json:"revenueGrowth,omitempty" yaml:"revenueGrowth,omitempty"`
	EmployeeCount                 int     `json:"employeeCount,omitempty" yaml:"employeeCount,omitempty"`
	EstimatedEngineeringHeadcount int     `json:"estimatedEngineeringHeadcount,omitempty" yaml:"estimatedEngineeringHeadcount,omitempty"`
}

type Codebase struct {
	Languages         []string `json:"languages,omitempty" yaml:"languages,omitempty"`
	Frameworks        []string `json:"frameworks,omitempty" yaml:"frameworks,omitempty"`
	Infrastructure    []string `json:"infrastructure,omitempty" yaml:"infrastructure,omitempty"`
	ArchitectureType  string   `json:"architectureType,omitempty" yaml:"architectureType,omitempty"`
	Complexity        string   `json:"complexity,omitempty" yaml:"complexity,omitempty"`
	TotalContributors int      `json:"totalContributors,omitempty" yaml:"totalContributors,omitempty"`
}

type Contact struct {
	Name       string `json:"name" yaml:"name"`
	Title      string `json:"title,omitempty" yaml:"title,omitempty"`
	Department string `json:"department,omitempty" yaml:"department,omitempty"`
	Seniority  string `json:"seniority,omitempty" yaml:"seniority,omitempty"`
}

// CompanySize returns the declared size, falling back to the financial
// employee count.
func (ci *CompanyIntelligence) CompanySize() string {
	if ci == nil {
		return CompanySizeStartup
	}
	switch ci.Company.Size {
	case CompanySizeStartup, CompanySizeMidSize, CompanySizeEnterprise:
		return ci.Company.Size
	}
	if ci.Financial != nil {
		return InferCompanySize(ci.Financial.EmployeeCount)
	}
	return CompanySizeStartup
}
