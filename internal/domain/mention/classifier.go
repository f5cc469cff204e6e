// Package mention classifies the @name tokens pulled from a user turn into
// tool, skill, agent-handle, or unknown references, driving dynamic tool
// loading for the planner.
package mention

import (
	"github.com/ngoclaw/agentcore/internal/domain/tool"
)

// SkillCatalog is the subset of the skill registry the classifier needs.
type SkillCatalog interface {
	Has(id string) bool
}

// Classification groups mentions by kind, in the order they were resolved.
type Classification struct {
	Tools   []string
	Skills  []string
	Agents  []string
	Unknown []string
}

// SkillReminder is a system-reminder instructing the model to read a
// skill's entry document, emitted for every mention classified as a skill.
type SkillReminder struct {
	SkillID string
	Text    string
}

// Classifier resolves @name tokens against the agent-handle root, the
// skill catalog, and the tool registry, in that priority order.
type Classifier struct {
	AgentHandleRoot string
	Skills          SkillCatalog
	Tools           tool.Registry
}

// NewClassifier binds a skill catalog and tool registry to a classifier.
// agentHandleRoot is the literal @name that refers to delegation (e.g.
// "agent"), matched before skills or tools.
func NewClassifier(agentHandleRoot string, skills SkillCatalog, tools tool.Registry) *Classifier {
	return &Classifier{AgentHandleRoot: agentHandleRoot, Skills: skills, Tools: tools}
}

// Classify resolves each mention in order and returns the grouped result
// plus the skill reminders to surface to the model. Unknown mentions are
// silently dropped into Unknown — no error is ever raised to the model.
func (c *Classifier) Classify(mentions []string) (Classification, []SkillReminder) {
	var result Classification
	var reminders []SkillReminder

	for _, name := range mentions {
		switch {
		case name == c.AgentHandleRoot:
			result.Agents = append(result.Agents, name)

		case c.Skills != nil && c.Skills.Has(name):
			result.Skills = append(result.Skills, name)
			reminders = append(reminders, SkillReminder{
				SkillID: name,
				Text:    "Skill @" + name + " is available — read its SKILL.md entry document before using it.",
			})

		case c.Tools != nil && (c.Tools.Has(name) || c.Tools.HasDiscovered(name)):
			if !c.Tools.Has(name) {
				c.Tools.LoadOnDemand(name)
			}
			result.Tools = append(result.Tools, name)

		default:
			result.Unknown = append(result.Unknown, name)
		}
	}

	return result, reminders
}
