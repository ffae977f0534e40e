package presentation

import (
	"github.com/zjrosen/autoload/internal/domain/autoload"
)

// Resolution statuses
const (
	StatusLoaded   = "loaded"
	StatusDeclined = "declined"
	StatusFound    = "found"
	StatusError    = "error"
)

// RegistrationDTO represents a namespace registration for presentation
type RegistrationDTO struct {
	Namespace string `json:"namespace"`
	Version   string `json:"version"`
	Dir       string `json:"dir"`
}

// ResolutionDTO is the outcome of resolving one symbol.
type ResolutionDTO struct {
	Symbol    string `json:"symbol"`
	Status    string `json:"status"`
	Path      string `json:"path,omitempty"`
	Namespace string `json:"namespace,omitempty"`
	Error     string `json:"error,omitempty"`
}

// EventDTO represents a registry event.
type EventDTO struct {
	Kind      string `json:"kind"`
	Namespace string `json:"namespace"`
	Version   string `json:"version"`
	Dir       string `json:"dir"`
	Previous  string `json:"previous,omitempty"`
}

// FromDomainRegistration converts a domain registration to a DTO
func FromDomainRegistration(reg autoload.Registration) RegistrationDTO {
	return RegistrationDTO{
		Namespace: reg.Namespace(),
		Version:   reg.Version(),
		Dir:       reg.BaseDir(),
	}
}

// FromDomainRegistrations converts a slice of domain registrations to DTOs
func FromDomainRegistrations(regs []autoload.Registration) []RegistrationDTO {
	dtos := make([]RegistrationDTO, len(regs))
	for i, reg := range regs {
		dtos[i] = FromDomainRegistration(reg)
	}
	return dtos
}

// FromResolution converts a resolve outcome to a DTO.
func FromResolution(symbol string, res autoload.Resolution, err error) ResolutionDTO {
	dto := ResolutionDTO{Symbol: symbol, Status: StatusDeclined}
	switch {
	case err != nil:
		dto.Status = StatusError
		dto.Error = err.Error()
	case res.Loaded:
		dto.Status = StatusLoaded
		dto.Path = res.Path
		dto.Namespace = res.Namespace
	}
	return dto
}

// FromCandidate converts a dry-run lookup to a DTO.
func FromCandidate(symbol, path string, ok bool) ResolutionDTO {
	if !ok {
		return ResolutionDTO{Symbol: symbol, Status: StatusDeclined}
	}
	return ResolutionDTO{Symbol: symbol, Status: StatusFound, Path: path}
}

// FromEvent converts a registry event to a DTO.
func FromEvent(ev autoload.Event) EventDTO {
	dto := EventDTO{
		Kind:      ev.Kind.String(),
		Namespace: ev.Registration.Namespace(),
		Version:   ev.Registration.Version(),
		Dir:       ev.Registration.BaseDir(),
	}
	if !ev.Previous.IsZero() {
		dto.Previous = ev.Previous.Version()
	}
	return dto
}
