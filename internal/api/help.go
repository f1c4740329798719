package api

import "github.com/BTreeMap/ReviewPipe/internal/review"

// StageHelp is the guidance shown to an employee for one stage.
type StageHelp struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Tips        []string `json:"tips"`
}

var stageHelp = map[review.StageID]StageHelp{
	review.StageAdvancements: {
		Title:       "Professional Advancements",
		Description: "Share how you have grown professionally since your last review.",
		Tips:        []string{"Describe new skills you learned", "Mention certifications you obtained", "Discuss responsibilities you took on"},
	},
	review.StageChallenges: {
		Title:       "Challenges & Obstacles",
		Description: "Talk about the difficulties you ran into this period.",
		Tips:        []string{"Focus on what you learned", "Explain how you worked around obstacles", "Share lessons you would apply next time"},
	},
	review.StageAchievements: {
		Title:       "Key Achievements",
		Description: "Highlight your most significant results.",
		Tips:        []string{"Quantify results with metrics", "Describe the impact on your team or the company", "Give specific examples"},
	},
	review.StageTrainingNeeds: {
		Title:       "Training & Development Needs",
		Description: "Identify where you want to grow next.",
		Tips:        []string{"Name the skill gaps you see", "Suggest concrete training programs", "Tie them to your career goals"},
	},
	review.StageActionPlan: {
		Title:       "Action Plan & Future Goals",
		Description: "Set goals and a plan to reach them.",
		Tips:        []string{"Make goals specific and measurable", "Set realistic deadlines", "List the resources you will need"},
	},
	review.StageSummary: {
		Title:       "Performance Review Summary",
		Description: "The review is complete and has been summarised.",
		Tips:        []string{"Read through the full summary", "Keep a copy for your records"},
	},
}

var generalHelp = StageHelp{
	Title:       "General Help",
	Description: "Give detailed answers with specific examples.",
	Tips:        []string{"Be specific and detailed in your responses"},
}

// helpFor returns the guidance for stage, or general guidance for stages
// without dedicated help.
func helpFor(stage review.StageID) StageHelp {
	if h, ok := stageHelp[stage]; ok {
		return h
	}
	return generalHelp
}
