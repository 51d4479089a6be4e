package chat

import "strings"

// DefaultBucket names the reply used when no bucket matches.
const DefaultBucket = "default"

// Bucket is one keyword group of the offline responder.
type Bucket struct {
	Name     string
	Keywords []string
	Reply    string
}

// buckets is evaluated top to bottom and the first hit wins. Several keywords
// overlap across groups ("Phase 1 metrics" hits both the first and the fifth),
// so the order is part of the behaviour.
var buckets = []Bucket{
	{
		Name:     "champion-network",
		Keywords: []string{"phase 1", "champion"},
		Reply:    "In Phase 1, Robert focuses on identifying 8-10 champions through a three-pronged approach he refined at CIBC. First, he analyzes performance data from the pilot group to identify who had the highest engagement rates. Second, he surveys the tax teams asking 'Who do you go to for help with new processes?' - this reveals natural influencers. Third, he gets manager recommendations. At CIBC, this approach helped Robert identify champions who could influence the broader organization. The key is positioning this as a leadership development opportunity, not additional work.",
	},
	{
		Name:     "department-pilots",
		Keywords: []string{"phase 2", "pilot"},
		Reply:    "Phase 2 is where Robert applies lessons from CIBC's pilot expansion. Each champion leads a 3-4 person team across different tax specialties - Corporate, Individual, International, State & Local. Robert's 8-week execution is critical: weeks 1-2 for intensive training, weeks 3-6 for daily usage with structured feedback, and weeks 7-8 for documenting use cases and efficiency gains. At CIBC, Robert learned that without this structured approach, pilots fail because people revert to old workflows under pressure.",
	},
	{
		Name:     "full-deployment",
		Keywords: []string{"phase 3", "deployment", "scale"},
		Reply:    "Phase 3 is full-scale deployment, and this is where Robert's CIBC experience really matters. He uses a cohort-based approach - 20-25 users every 2 weeks, starting with departments that had the highest pilot success rates. The key innovation Robert brought from CIBC is AI hackathons and developer days. These create ownership and excitement rather than resistance. People need to feel they're shaping the tool, not just using it.",
	},
	{
		Name:     "optimization",
		Keywords: []string{"phase 4", "optimization", "expansion"},
		Reply:    "Phase 4 is optimization and expansion. Robert implements comprehensive analytics through Power BI with REST API integration, Google Analytics 4 for user journey mapping, and Mixpanel for feature funnel analysis. At CIBC, Robert learned that you need five levels of metrics: adoption rates, efficiency gains, quality improvements, ROI measurement, and user satisfaction. The key is automated alerts when metrics fall below thresholds - you can't manage what you don't measure.",
	},
	{
		Name:     "metrics",
		Keywords: []string{"metric", "measure", "kpi", "roi"},
		Reply:    "Robert tracks success through five categories, each with specific platforms. Adoption metrics via Power BI dashboards with automated threshold alerts. Efficiency measurement through Toggl Track integration with statistical significance testing. Quality assessment using Salesforce Quality Management with blind reviews. Financial impact via Tableau with ERP correlation analysis. And user satisfaction through Qualtrics with longitudinal studies. At CIBC, this comprehensive measurement approach was crucial for Robert demonstrating value and getting continued investment.",
	},
	{
		Name:     "stakeholders",
		Keywords: []string{"stakeholder", "skeptical", "resistance", "leader"},
		Reply:    "Engaging AI-skeptical leaders requires three strategies Robert perfected at CIBC. First, success story demonstrations - he shows them the 40% efficiency gains, competitor case studies from Deloitte and PwC, and testimonials from Fortune 500 CFOs. Second, thought leader authority - Robert shares insights from Andrew Ng, Satya Nadella, and McKinsey reports on enterprise AI. Third, risk mitigation emphasis - Robert positions AI as improving accuracy and providing audit trails, not replacing judgment. The key is hands-on workshops where they use the tools themselves.",
	},
	{
		Name:     "training",
		Keywords: []string{"training", "support", "learn"},
		Reply:    "Support structures are critical - this is where most AI rollouts fail. Robert implements three layers: Learning Management through KMPG Clara Learning Platform with custom AI modules and certification badges, Technical Support via ServiceNow with dedicated AI categories and 4-hour SLA, and Peer Networks through Slack champion communities and Microsoft Yammer AI Centers of Excellence. At CIBC, Robert learned that mandatory training works - people thank you later when they see the productivity gains.",
	},
	{
		Name:     "discovery",
		Keywords: []string{"three questions", "initial questions", "discovery questions", "what questions do you ask", "upfront questions", "how do you start", "first questions"},
		Reply:    "Robert always starts with three strategic discovery questions that he's refined through his CIBC experience: 1) **Stakeholder Priorities** - What are each of your primary success metrics for this AI rollout? Robert needs to understand what success looks like from Tax, Technology, and Product perspectives. 2) **Resource Reality** - What level of time investment can we realistically ask from tax professionals during rollout? 2-3 hours per week for training, or do we need to be more conservative? 3) **Organizational Dynamics** - Based on previous technology implementations, what has been our biggest barrier? These questions uncover alignment issues, resource constraints, and historical resistance patterns that are crucial for Robert's strategy development.",
	},
	{
		Name:     "experience",
		Keywords: []string{"cibc", "experience", "background"},
		Reply:    "At CIBC, Robert led the rollout of an internal AI knowledge search tool that scaled from 300 to 15,000 users. The key lessons were: employees resist changing established workflows, internal tools are often perceived as inferior to external options like ChatGPT, and mandatory training is essential. Robert's 'thank me later' approach works - initial resistance transforms into appreciation with proper onboarding. Quality directly correlates with user skill, so comprehensive training isn't optional.",
	},
	{
		Name:     "adoption",
		Keywords: []string{"adoption", "barrier", "challenge"},
		Reply:    "The main adoption barriers are organizational, not technical. From Robert's CIBC experience, people have established workflows and fear AI will compromise quality. They prefer familiar manual processes and worry about accountability. Robert's solution is systematic change management: identify champions, provide hands-on training, show success stories, and position AI as a productivity multiplier, not a replacement. The pilot's 40% efficiency gain proves the technology works - Robert's job is managing the human element.",
	},
}

const defaultReply = "Based on Robert's experience scaling AI at CIBC from 300 to 15,000 users, successful AI adoption requires systematic change management, not just good technology. The key is treating this as an organizational transformation with clear phases, comprehensive metrics, and constant stakeholder engagement. What specific aspect of Robert's rollout strategy would you like me to elaborate on?"

// Buckets returns the keyword groups in evaluation order.
func Buckets() []Bucket {
	out := make([]Bucket, len(buckets))
	copy(out, buckets)
	return out
}

// Respond picks the canned reply for question. It never fails and never
// returns an empty reply. Matching is a case-insensitive substring test.
func Respond(question string) (bucket, reply string) {
	q := strings.ToLower(question)
	for _, b := range buckets {
		for _, k := range b.Keywords {
			if strings.Contains(q, k) {
				return b.Name, b.Reply
			}
		}
	}
	return DefaultBucket, defaultReply
}
