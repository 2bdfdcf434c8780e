package scenarios

import (
	"fmt"

	"github.com/aristath/noteengine/internal/domain"
	"github.com/aristath/noteengine/internal/modules/coupons"
	"github.com/aristath/noteengine/internal/modules/payout"
	"github.com/aristath/noteengine/internal/modules/triggers"
	"github.com/aristath/noteengine/pkg/formulas"
)

// SampleNotional is the illustrative investment every worked example uses.
const SampleNotional = 100000.0

// Sample final levels, in percent of initial. Examples never use live prices.
const (
	sampleGainLevelPct   = 108.0 // Regular Income final level when all goes well
	sampleIntactLevelPct = 90.0  // Boosted Growth level between barrier and bonus
	sampleUpsideGapPct   = 40.0  // above the participation start
	sampleAboveBonusPct  = 15.0  // above the bonus level
	sampleDownsideGapPct = 15.0  // below a protection or knock-in level
	sampleBreachGapPct   = 5.0   // below a bonus barrier
)

// sampleBelow is a sample level gap points under pct. Thresholds closer to zero than
// the gap use half the threshold, so the level stays positive and still below it.
func sampleBelow(pct, gap float64) float64 {
	if level := pct - gap; level > 0 {
		return level
	}
	return pct / 2
}

// sampleCallCoupons is the number of coupons paid before a sample autocall.
const sampleCallCoupons = 2

// Narrator builds scenario flows.
type Narrator struct {
	currency string
}

// NewNarrator returns a narrator that formats amounts in currency (empty for no symbol).
func NewNarrator(currency string) *Narrator {
	return &Narrator{currency: currency}
}

// Narrate builds the flow for p. A nil status yields a flow without live chips.
func Narrate(p *domain.ProductLifecycleData, st *triggers.Status) (*ScenarioFlow, error) {
	return NewNarrator(p.Currency).Narrate(p, st)
}

// Narrate builds the flow for p.
func (n *Narrator) Narrate(p *domain.ProductLifecycleData, st *triggers.Status) (*ScenarioFlow, error) {
	terms, err := p.ResolveTerms()
	if err != nil {
		return nil, err
	}
	nodes, err := domain.MatchTerms(terms,
		func(t *domain.RegularIncomeTerms) ([]DecisionNode, error) {
			var live *triggers.RegularIncomeStatus
			if st != nil {
				live = st.RegularIncome
			}
			return n.regularIncome(t, live), nil
		},
		func(t *domain.CapitalProtectionTerms) ([]DecisionNode, error) {
			var live *triggers.CapitalProtectionStatus
			if st != nil {
				live = st.CapitalProtection
			}
			return n.capitalProtection(t, live), nil
		},
		func(t *domain.BoostedGrowthTerms) ([]DecisionNode, error) {
			var live *triggers.BoostedGrowthStatus
			if st != nil {
				live = st.BoostedGrowth
			}
			return n.boostedGrowth(t, live), nil
		},
	)
	if err != nil {
		return nil, err
	}
	return &ScenarioFlow{
		Bucket: p.Bucket,
		Title:  fmt.Sprintf("%s: what happens if", p.Bucket.DisplayName()),
		Nodes:  nodes,
	}, nil
}

func (n *Narrator) money(v float64) string {
	return formulas.FormatMoney(v, n.currency)
}

// example renders a payout result computed from sample inputs.
func (n *Narrator) example(label string, r payout.Result) string {
	return fmt.Sprintf("Example (sample %s notional, %s): %s = %s",
		n.money(r.Principal), label, r.Formula, n.money(r.Amount))
}

func distanceChip(label string, v float64) MetaChip {
	tone := TonePositive
	if v < 0 {
		tone = ToneNegative
	}
	return MetaChip{Label: label, Value: formulas.FormatSignedRatioPct(v), Tone: tone}
}

func flagChip(label string, on bool, onText, offText string, onTone Tone) MetaChip {
	if on {
		return MetaChip{Label: label, Value: onText, Tone: onTone}
	}
	return MetaChip{Label: label, Value: offText, Tone: ToneNeutral}
}

func (n *Narrator) regularIncome(t *domain.RegularIncomeTerms, live *triggers.RegularIncomeStatus) []DecisionNode {
	perPeriod := coupons.PeriodAmount(SampleNotional, t.CouponRatePA, t.CouponFrequency)
	periods := t.CouponFrequency
	if _, err := coupons.Count(12, t.CouponFrequency); err != nil {
		periods = 0
	}
	yearOfCoupons := perPeriod * float64(periods)

	var nodes []DecisionNode

	if t.AutocallEnabled() {
		autocall := *t.AutocallLevelPct
		called := payout.RegularIncome(payout.RegularIncomeInput{
			Principal:   SampleNotional,
			FinalLevel:  formulas.PctToRatio(autocall),
			Terms:       t,
			Autocalled:  true,
			PaidCoupons: perPeriod * sampleCallCoupons,
		})
		node := DecisionNode{
			ID:       NodeAutocall,
			Question: fmt.Sprintf("Is the basket at or above %s of its initial level on an observation date?", formulas.FormatPct(autocall)),
			Yes: Outcome{
				Title: "Early Redemption",
				Bullets: []string{
					"The product is redeemed early at 100% of the invested amount.",
					"Coupons paid up to the redemption date are kept.",
					"No further coupons are paid after redemption.",
				},
				Example: n.example(fmt.Sprintf("called after %d coupons", sampleCallCoupons), called),
			},
			No: Outcome{
				Title: "Product Continues",
				Bullets: []string{
					"The product keeps running to the next observation date.",
					fmt.Sprintf("Coupons of %s p.a. continue to be paid.", formulas.FormatPct(t.CouponRatePA)),
				},
				Example: fmt.Sprintf("Example: a sample %s notional keeps receiving %s per period.", n.money(SampleNotional), n.money(perPeriod)),
			},
			Meta: []MetaChip{{Label: "Autocall level", Value: formulas.FormatPct(autocall), Tone: ToneNeutral}},
		}
		if live != nil {
			node.Meta = append(node.Meta,
				MetaChip{Label: "Distance to autocall", Value: formulas.FormatRatioPct(live.DistanceToAutocallPct), Tone: ToneNeutral},
				flagChip("Autocall", live.AutocallTriggered, "Triggered", "Not triggered", TonePositive),
			)
		}
		nodes = append(nodes, node)
	}

	protection := t.ProtectionLevelPct
	safe := payout.RegularIncome(payout.RegularIncomeInput{
		Principal:   SampleNotional,
		FinalLevel:  formulas.PctToRatio(sampleGainLevelPct),
		Terms:       t,
		PaidCoupons: yearOfCoupons,
	})
	downLevel := sampleBelow(protection, sampleDownsideGapPct)
	converted := payout.RegularIncome(payout.RegularIncomeInput{
		Principal:   SampleNotional,
		FinalLevel:  formulas.PctToRatio(downLevel),
		Terms:       t,
		PaidCoupons: yearOfCoupons,
	})
	node := DecisionNode{
		ID:       NodeProtection,
		Question: fmt.Sprintf("Is the final basket level at or above the %s protection level?", formulas.FormatPct(protection)),
		Yes: Outcome{
			Title: "Cash Redemption",
			Bullets: []string{
				"The full invested amount is repaid in cash at maturity.",
				"All coupons paid during the life are kept.",
			},
			Example: n.example(fmt.Sprintf("final level %s, %d coupons paid", formulas.FormatPct(sampleGainLevelPct), periods), safe),
		},
		No: Outcome{
			Title: "Share Conversion",
			Bullets: []string{
				"Repayment follows the basket's final level one to one.",
				"Coupons already paid are kept.",
				"The loss mirrors the fall of the driving underlying.",
			},
			Example: n.example(fmt.Sprintf("final level %s, %d coupons paid", formulas.FormatPct(downLevel), periods), converted),
		},
		Meta: []MetaChip{{Label: "Protection level", Value: formulas.FormatPct(protection), Tone: ToneNeutral}},
	}
	if live != nil {
		node.Meta = append(node.Meta,
			distanceChip("Buffer to protection", live.BufferToProtectionPct),
			flagChip("Protection", live.ProtectionBreached, "Breached", "Intact", ToneNegative),
		)
	}
	return append(nodes, node)
}

func (n *Narrator) capitalProtection(t *domain.CapitalProtectionTerms, live *triggers.CapitalProtectionStatus) []DecisionNode {
	var nodes []DecisionNode

	if t.IssuerCallEnabled() {
		ic := t.IssuerCall
		callMonth := ic.FirstCallMonth
		if callMonth <= 0 {
			callMonth = ic.FrequencyMonths
		}
		called := payout.CapitalProtection(payout.CapitalProtectionInput{
			Principal:  SampleNotional,
			FinalLevel: 1,
			Terms:      t,
			Called:     true,
			CallMonth:  callMonth,
		})
		node := DecisionNode{
			ID:       NodeIssuerCall,
			Question: fmt.Sprintf("Does the issuer call the product on an observation date (every %d months)?", ic.FrequencyMonths),
			Yes: Outcome{
				Title: "Early Redemption",
				Bullets: []string{
					fmt.Sprintf("The protected %s is repaid early.", formulas.FormatPct(t.CapitalProtectionPct)),
					fmt.Sprintf("An exit premium of %s p.a. is added for the months elapsed.", formulas.FormatPct(ic.ExitRatePA)),
					"No further participation in the basket applies.",
				},
				Example: n.example(fmt.Sprintf("called in month %d", callMonth), called),
			},
			No: Outcome{
				Title: "Product Continues",
				Bullets: []string{
					"The product runs on to the next call date or to maturity.",
					"Protection and participation remain in force.",
				},
				Example: fmt.Sprintf("Example: a sample %s notional stays invested with a %s floor.", n.money(SampleNotional), formulas.FormatPct(t.CapitalProtectionPct)),
			},
			Meta: []MetaChip{{Label: "Call frequency", Value: fmt.Sprintf("%d months", ic.FrequencyMonths), Tone: ToneNeutral}},
		}
		if live != nil {
			node.Meta = append(node.Meta, flagChip("Issuer call", live.IssuerCalled, "Called", "Not called", TonePositive))
			if live.NextCallDate != nil {
				node.Meta = append(node.Meta, MetaChip{Label: "Next call date", Value: live.NextCallDate.Format("2006-01-02"), Tone: ToneNeutral})
			}
		}
		nodes = append(nodes, node)
	}

	start := t.ParticipationStartPct
	upLevel := start + sampleUpsideGapPct
	gain := payout.CapitalProtection(payout.CapitalProtectionInput{
		Principal:  SampleNotional,
		FinalLevel: formulas.PctToRatio(upLevel),
		Terms:      t,
	})
	downLevel := sampleBelow(start, sampleDownsideGapPct)
	floor := payout.CapitalProtection(payout.CapitalProtectionInput{
		Principal:  SampleNotional,
		FinalLevel: formulas.PctToRatio(downLevel),
		Terms:      t,
	})
	gainBullets := []string{
		fmt.Sprintf("You receive the %s protected amount.", formulas.FormatPct(t.CapitalProtectionPct)),
		fmt.Sprintf("Plus %s of the basket's rise above %s.", formulas.FormatPct(t.ParticipationRatePct), formulas.FormatPct(start)),
	}
	if t.HasCap() {
		gainBullets = append(gainBullets, fmt.Sprintf("The total repayment is capped at %s.", formulas.FormatPct(*t.CapLevelPct)))
	}
	node := DecisionNode{
		ID:       NodeParticipation,
		Question: fmt.Sprintf("Does the basket finish at or above the %s participation start?", formulas.FormatPct(start)),
		Yes: Outcome{
			Title:   "Participated Gain",
			Bullets: gainBullets,
			Example: n.example(fmt.Sprintf("final level %s", formulas.FormatPct(upLevel)), gain),
		},
		No: Outcome{
			Title: "Capital Protected",
			Bullets: []string{
				fmt.Sprintf("You receive %s of the invested amount at maturity.", formulas.FormatPct(t.CapitalProtectionPct)),
				"Basket losses below the participation start do not reduce the repayment.",
			},
			Example: n.example(fmt.Sprintf("final level %s", formulas.FormatPct(downLevel)), floor),
		},
		Meta: []MetaChip{
			{Label: "Participation start", Value: formulas.FormatPct(start), Tone: ToneNeutral},
			{Label: "Participation rate", Value: formulas.FormatPct(t.ParticipationRatePct), Tone: ToneNeutral},
		},
	}
	if live != nil && !live.IssuerCalled {
		node.Meta = append(node.Meta, flagChip("Participation", live.ParticipationActive, "Active", "Inactive", TonePositive))
	}
	nodes = append(nodes, node)

	if t.KnockInEnabled() {
		ki := t.KnockIn.LevelPct
		touchLevel := sampleBelow(ki, sampleDownsideGapPct)
		voided := payout.CapitalProtection(payout.CapitalProtectionInput{
			Principal:  SampleNotional,
			FinalLevel: formulas.PctToRatio(touchLevel),
			Terms:      t,
			KnockedIn:  true,
		})
		intact := payout.CapitalProtection(payout.CapitalProtectionInput{
			Principal:  SampleNotional,
			FinalLevel: formulas.PctToRatio(touchLevel),
			Terms:      t,
		})
		node := DecisionNode{
			ID:       NodeKnockIn,
			Question: fmt.Sprintf("Does the basket ever touch the %s knock-in level?", formulas.FormatPct(ki)),
			Yes: Outcome{
				Title: "Protection Voided",
				Bullets: []string{
					"The capital protection no longer applies, even if the basket recovers.",
					"Repayment follows the basket's final level one to one.",
				},
				Example: n.example(fmt.Sprintf("knocked in, final level %s", formulas.FormatPct(touchLevel)), voided),
			},
			No: Outcome{
				Title: "Protection Intact",
				Bullets: []string{
					fmt.Sprintf("The %s capital protection stays in force.", formulas.FormatPct(t.CapitalProtectionPct)),
				},
				Example: n.example(fmt.Sprintf("no knock-in, final level %s", formulas.FormatPct(touchLevel)), intact),
			},
			Meta: []MetaChip{{Label: "Knock-in level", Value: formulas.FormatPct(ki), Tone: ToneNeutral}},
		}
		if live != nil && !live.IssuerCalled {
			node.Meta = append(node.Meta,
				distanceChip("Buffer to knock-in", live.BufferToKnockInPct),
				flagChip("Knock-in", live.KnockInTriggered, "Triggered", "Not triggered", ToneNegative),
			)
		}
		nodes = append(nodes, node)
	}
	return nodes
}

func (n *Narrator) boostedGrowth(t *domain.BoostedGrowthTerms, live *triggers.BoostedGrowthStatus) []DecisionNode {
	barrier, bonus := t.BarrierLevelPct, t.BonusLevelPct

	intactLevel := sampleIntactLevelPct
	if intactLevel <= barrier || intactLevel >= bonus {
		intactLevel = (barrier + bonus) / 2
	}
	breachLevel := sampleBelow(barrier, sampleBreachGapPct)
	upLevel := bonus + sampleAboveBonusPct

	breached := payout.BoostedGrowth(payout.BoostedGrowthInput{
		Principal:       SampleNotional,
		FinalLevel:      formulas.PctToRatio(breachLevel),
		Terms:           t,
		BarrierBreached: true,
	})
	bonusPaid := payout.BoostedGrowth(payout.BoostedGrowthInput{
		Principal:  SampleNotional,
		FinalLevel: formulas.PctToRatio(intactLevel),
		Terms:      t,
	})
	performance := payout.BoostedGrowth(payout.BoostedGrowthInput{
		Principal:  SampleNotional,
		FinalLevel: formulas.PctToRatio(upLevel),
		Terms:      t,
	})

	question := fmt.Sprintf("Does the basket ever close at or below the %s barrier?", formulas.FormatPct(barrier))
	if t.European() {
		question = fmt.Sprintf("Is the final basket level at or below the %s barrier?", formulas.FormatPct(barrier))
	}
	breachBullets := []string{
		"The bonus is forfeited.",
		"Repayment follows the basket's final level.",
	}
	if rate := t.PostBreachParticipationPct(); rate != 100 {
		breachBullets = append(breachBullets, fmt.Sprintf("The final level is geared at %s.", formulas.FormatPct(rate)))
	}

	barrierNode := DecisionNode{
		ID:       NodeBarrier,
		Question: question,
		Yes: Outcome{
			Title:   "Barrier Breached",
			Bullets: breachBullets,
			Example: n.example(fmt.Sprintf("barrier breached, final level %s", formulas.FormatPct(breachLevel)), breached),
		},
		No: Outcome{
			Title: "Bonus Payout",
			Bullets: []string{
				fmt.Sprintf("You receive at least %s of the invested amount.", formulas.FormatPct(bonus)),
				"If the basket rises above the bonus level you receive its full performance.",
			},
			Example: n.example(fmt.Sprintf("barrier intact, final level %s", formulas.FormatPct(intactLevel)), bonusPaid),
		},
		Meta: []MetaChip{
			{Label: "Barrier", Value: formulas.FormatPct(barrier), Tone: ToneNeutral},
			{Label: "Observation", Value: string(observation(t)), Tone: ToneNeutral},
		},
	}
	if live != nil {
		barrierNode.Meta = append(barrierNode.Meta,
			distanceChip("Buffer to barrier", live.BufferToBarrierPct),
			flagChip("Barrier", live.BarrierBreached, "Breached", "Intact", ToneNegative),
		)
	}

	upsideNode := DecisionNode{
		ID:       NodeUpside,
		Question: fmt.Sprintf("Does the basket finish above the %s bonus level?", formulas.FormatPct(bonus)),
		Yes: Outcome{
			Title: "Performance Payout",
			Bullets: []string{
				"You receive the basket's full final performance.",
				"There is no cap on the upside.",
			},
			Example: n.example(fmt.Sprintf("final level %s", formulas.FormatPct(upLevel)), performance),
		},
		No: Outcome{
			Title: "Bonus Payout",
			Bullets: []string{
				fmt.Sprintf("You receive the %s bonus level, provided the barrier held.", formulas.FormatPct(bonus)),
			},
			Example: n.example(fmt.Sprintf("final level %s", formulas.FormatPct(intactLevel)), bonusPaid),
		},
		Meta: []MetaChip{{Label: "Bonus level", Value: formulas.FormatPct(bonus), Tone: ToneNeutral}},
	}
	if live != nil {
		upsideNode.Meta = append(upsideNode.Meta, flagChip("Above bonus", live.AboveBonus, "Yes", "No", TonePositive))
	}

	return []DecisionNode{barrierNode, upsideNode}
}

func observation(t *domain.BoostedGrowthTerms) domain.BarrierObservation {
	if t.European() {
		return domain.ObservationEuropean
	}
	return domain.ObservationContinuous
}
