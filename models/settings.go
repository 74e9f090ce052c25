package models

import "fmt"

// GlobalDeploymentSettings is the settings document loaded at startup.
// It describes which projects exist, the services inside each project and
// the deploy jobs that can be triggered for each service.
type GlobalDeploymentSettings struct {
	Projects []ProjectSettings `json:"projects" yaml:"projects" validate:"dive"`
}

// ProjectSettings describes one project
type ProjectSettings struct {
	Name        string            `json:"name" yaml:"name" validate:"required,max=100"`
	Description string            `json:"description,omitempty" yaml:"description,omitempty"`
	Services    []ServiceSettings `json:"services" yaml:"services" validate:"dive"`
}

// ServiceSettings describes one deployable service of a project
type ServiceSettings struct {
	Name string              `json:"name" yaml:"name" validate:"required,max=100"`
	Jobs []DeployJobSettings `json:"jobs" yaml:"jobs" validate:"dive"`
}

// DeployJobSettings describes one deploy job of a service
type DeployJobSettings struct {
	Name          string            `json:"name" yaml:"name" validate:"required,max=100"`
	BuildConfigID string            `json:"build_config_id,omitempty" yaml:"build_config_id,omitempty"`
	Parameters    map[string]string `json:"parameters,omitempty" yaml:"parameters,omitempty"`
}

// CheckUniqueNames reports the first duplicated name within a parent:
// project names globally, service names per project, job names per service.
func (s *GlobalDeploymentSettings) CheckUniqueNames() error {
	projects := make(map[string]struct{}, len(s.Projects))
	for _, p := range s.Projects {
		if _, dup := projects[p.Name]; dup {
			return fmt.Errorf("duplicate project %q", p.Name)
		}
		projects[p.Name] = struct{}{}

		services := make(map[string]struct{}, len(p.Services))
		for _, svc := range p.Services {
			if _, dup := services[svc.Name]; dup {
				return fmt.Errorf("duplicate service %q in project %q", svc.Name, p.Name)
			}
			services[svc.Name] = struct{}{}

			jobs := make(map[string]struct{}, len(svc.Jobs))
			for _, job := range svc.Jobs {
				if _, dup := jobs[job.Name]; dup {
					return fmt.Errorf("duplicate job %q in service %q of project %q", job.Name, svc.Name, p.Name)
				}
				jobs[job.Name] = struct{}{}
			}
		}
	}
	return nil
}

// FindProject returns the project with the given name
func (s *GlobalDeploymentSettings) FindProject(name string) (*ProjectSettings, bool) {
	for i := range s.Projects {
		if s.Projects[i].Name == name {
			return &s.Projects[i], true
		}
	}
	return nil, false
}
