package combat

import "strings"

// labelSeparator joins ability labels when more than one hook triggers in a round.
const labelSeparator = " + "

// ResolveAttack runs one round of the damage pipeline for attacker against
// defender and commits the defender's new health:
//
//  1. attack = attacker.Attack, transformed by an offense OnAttack hook
//  2. net = max(0, attack - defender.Defense), transformed by a defense OnDefend hook
//  3. health = max(0, defender.Health - net), transformed by a defense AfterDamage hook
//
// A hook that returns its input unchanged did not trigger this round.
//
// Precondition: attacker and defender are distinct, non-nil combatants.
// Postcondition: defender.Health >= 0; attacker.Health is unchanged.
func ResolveAttack(round int, attacker, defender *Combatant) RoundOutcome {
	triggered := []string{}

	attack := attacker.Attack
	if attacker.Ability.IsOffense() && attacker.Ability.Hooks.OnAttack != nil {
		if v := attacker.Ability.Hooks.OnAttack(attack); v != attack {
			attack = max(0, v)
			triggered = append(triggered, attacker.Ability.ID)
		}
	}

	net := max(0, attack-defender.Defense)
	defense := defender.Ability.IsDefense()
	if defense && defender.Ability.Hooks.OnDefend != nil {
		if v := defender.Ability.Hooks.OnDefend(net); v != net {
			net = max(0, v)
			triggered = append(triggered, defender.Ability.ID)
		}
	}

	health := max(0, defender.Health-net)
	if defense && defender.Ability.Hooks.AfterDamage != nil {
		if v := defender.Ability.Hooks.AfterDamage(health); v != health {
			health = max(0, v)
			triggered = append(triggered, defender.Ability.ID)
		}
	}
	defender.Health = health

	out := RoundOutcome{
		RoundNumber:  round,
		AttackerID:   attacker.PlayerID,
		AttackerName: attacker.Name(),
		DefenderID:   defender.PlayerID,
		DefenderName: defender.Name(),
		Triggered:    triggered,
		BaseAttack:   attacker.Attack,
		AttackValue:  attack,
		DamageDealt:  net,
		HealthAfter: map[string]int{
			attacker.PlayerID: attacker.Health,
			defender.PlayerID: defender.Health,
		},
	}
	if len(triggered) > 0 {
		label := strings.Join(triggered, labelSeparator)
		out.AbilityUsed = &label
	}
	return out
}
