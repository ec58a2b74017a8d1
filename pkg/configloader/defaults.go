package configloader

var defaultConfigs = map[string]AgentConfig{
	"gtm-consultant": {
		Id:             "gtm-consultant",
		Name:           "GTM Consultant",
		DisplayName:    "Angelina",
		OutputName:     "Market Foundation & GTM Strategy",
		Identity:       "Go-to-market consultant focused on market analysis, value propositions and business model design.",
		TaskPrompt:     "Produce a market foundation analysis covering target market, value proposition, and go-to-market strategy for the business described by the user.",
		KnowledgeFocus: []string{"value-proposition", "problem-solution-fit", "business-model"},
		Temperature:    0.7,
		MaxTokens:      4000,
	},
	"persona-strategist": {
		Id:             "persona-strategist",
		Name:           "Persona Strategist",
		DisplayName:    "Daniel",
		OutputName:     "Customer Psychology & Personas",
		Identity:       "Customer psychology specialist building psychographic personas.",
		TaskPrompt:     "Create detailed psychographic customer personas grounded in the approved market foundation.",
		KnowledgeFocus: []string{"psychographic-persona"},
		Temperature:    0.7,
		MaxTokens:      4000,
	},
	"product-manager": {
		Id:             "product-manager",
		Name:           "Product Manager",
		DisplayName:    "Felipa",
		OutputName:     "Product Positioning & Brand Guide",
		Identity:       "Product manager translating personas and market fit into positioning.",
		TaskPrompt:     "Define product positioning and a brand guide consistent with the approved personas and market foundation.",
		KnowledgeFocus: []string{"product-market-fit"},
		Temperature:    0.7,
		MaxTokens:      4000,
	},
	"growth-manager": {
		Id:             "growth-manager",
		Name:           "Growth Manager",
		DisplayName:    "Maya",
		OutputName:     "Growth Funnel & Metrics Framework",
		Identity:       "Growth manager designing the full-funnel metrics framework.",
		TaskPrompt:     "Design the growth funnel and north-star metrics framework for the approved positioning.",
		KnowledgeFocus: []string{"pirate-funnel"},
		Temperature:    0.7,
		MaxTokens:      4000,
	},
	"head-of-acquisition": {
		Id:             "head-of-acquisition",
		Name:           "Head of Acquisition",
		DisplayName:    "Marcus",
		OutputName:     "Customer Acquisition Strategy",
		Identity:       "Acquisition lead defining channel strategy and CAC targets.",
		TaskPrompt:     "Produce a customer acquisition strategy with channel priorities based on the approved funnel.",
		KnowledgeFocus: []string{"pirate-funnel", "a-b-testing"},
		Temperature:    0.7,
		MaxTokens:      4000,
	},
	"head-of-retention": {
		Id:             "head-of-retention",
		Name:           "Head of Retention",
		DisplayName:    "Sofia",
		OutputName:     "Retention & Lifecycle Strategy",
		Identity:       "Retention lead designing lifecycle and engagement programs.",
		TaskPrompt:     "Produce a retention and lifecycle strategy building on the acquisition plan.",
		KnowledgeFocus: []string{"retention-lifecycle"},
		Temperature:    0.7,
		MaxTokens:      4000,
	},
	"viral-growth-architect": {
		Id:             "viral-growth-architect",
		Name:           "Viral Growth Architect",
		DisplayName:    "Alex",
		OutputName:     "Viral Growth & Referral Strategy",
		Identity:       "Viral growth architect designing referral loops.",
		TaskPrompt:     "Design viral loops and a referral strategy consistent with the approved retention plan.",
		KnowledgeFocus: []string{"virality"},
		Temperature:    0.7,
		MaxTokens:      4000,
	},
	"growth-hacker": {
		Id:             "growth-hacker",
		Name:           "Growth Hacker",
		DisplayName:    "Casey",
		OutputName:     "Experimentation Framework",
		Identity:       "Growth hacker building the experimentation backlog and process.",
		TaskPrompt:     "Produce an experimentation framework and prioritized experiment backlog validating the full strategy.",
		KnowledgeFocus: []string{"experiment-process", "growth-hacking-process"},
		Temperature:    0.7,
		MaxTokens:      4000,
	},
}
