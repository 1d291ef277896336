package classifier

// DefaultRules returns the standard decision procedure, in evaluation order.
// A post that falls through every rule is excluded with ReasonNoMatch.
func DefaultRules() []Rule {
	return []Rule{
		{Name: "trusted_author", Apply: trustedAuthorRule},
		{Name: "no_text", Apply: noTextRule},
		{Name: "high_confidence", Apply: highConfidenceRule},
		{Name: "entity", Apply: entityRule},
		{Name: "medium", Apply: mediumRule},
	}
}

// trustedAuthorRule fires before the text is inspected, so an empty post from
// a trusted author is still included.
func trustedAuthorRule(e *Evaluation) (Result, bool) {
	if !e.IsTrustedAuthor() {
		return Result{}, false
	}
	return Result{Include: true, Reason: ReasonTrustedAuthor}, true
}

func noTextRule(e *Evaluation) (Result, bool) {
	if e.HasText() {
		return Result{}, false
	}
	return Result{Include: false, Reason: ReasonNoText}, true
}

func highConfidenceRule(e *Evaluation) (Result, bool) {
	if len(e.HighConfidenceMatches()) == 0 {
		return Result{}, false
	}
	score := e.ContextScore()
	if score <= e.Thresholds().HighConfidenceOverride {
		return Result{Include: false, Reason: ReasonContextOverride, ContextScore: score}, true
	}
	return Result{Include: true, Reason: ReasonHighConfidence, ContextScore: score}, true
}

func entityRule(e *Evaluation) (Result, bool) {
	if len(e.EntityMatches()) == 0 {
		return Result{}, false
	}
	score := e.ContextScore()
	if score >= e.Thresholds().EntityMinScore {
		return Result{Include: true, Reason: ReasonEntityWithContext, ContextScore: score}, true
	}
	return Result{Include: false, Reason: ReasonEntityNoContext, ContextScore: score}, true
}

func mediumRule(e *Evaluation) (Result, bool) {
	if len(e.MediumMatches()) < e.Thresholds().MinMediumTerms {
		return Result{}, false
	}
	score := e.ContextScore()
	if score > e.Thresholds().MediumFloor {
		return Result{Include: true, Reason: ReasonMultiMedium, ContextScore: score}, true
	}
	return Result{Include: false, Reason: ReasonMediumFalsePositive, ContextScore: score}, true
}
