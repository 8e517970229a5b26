package llm

import "fmt"

// Enhancement focus areas. Values are persisted on Enhancement rows, so they
// must stay stable.
const (
	TypeSkillsCertifications = "skills_certifications"
	TypeProjectExperience    = "project_experience"
	TypeClientQuality        = "client_quality"
)

const systemPrompt = "You are a professional resume writer specializing in trade and technical resumes. " +
	"Format your response in clean, professional markdown."

var promptTemplates = map[string]string{
	TypeSkillsCertifications: "Enhance the following resume by highlighting trade skills, licenses, and certifications. " +
		"Make them prominent and well-formatted:\n\n%s",
	TypeProjectExperience: "Enhance the following resume by showcasing completed projects and technical expertise. " +
		"Use strong action verbs:\n\n%s",
	TypeClientQuality: "Enhance the following resume by emphasizing customer satisfaction, quality work, and client success stories:\n\n%s",
}

// promptFor renders the template for the given focus area. Unknown types fall
// back to the client-quality template rather than failing the request.
func promptFor(enhancementType, content string) string {
	template, ok := promptTemplates[enhancementType]
	if !ok {
		template = promptTemplates[TypeClientQuality]
	}
	return fmt.Sprintf(template, content)
}
