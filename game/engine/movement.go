package engine

// IsFree reports whether a bot may stand on pos
func (u *Universe) IsFree(pos Position) bool {
	return u.Grid.InBounds(pos) && !u.Grid.Has(pos, Wall)
}

// Neighbourhood returns the target of every direction from pos, walls included
func (u *Universe) Neighbourhood(pos Position) map[Direction]Position {
	out := make(map[Direction]Position, len(Directions))
	for _, d := range Directions {
		out[d] = pos.Add(d)
	}
	return out
}

// LegalMoves maps each direction a bot at pos may take to its target.
// Stop is always present. Other bots never block a move.
func (u *Universe) LegalMoves(pos Position) map[Direction]Position {
	out := make(map[Direction]Position, len(Directions))
	for d, target := range u.Neighbourhood(pos) {
		if d == Stop || u.IsFree(target) {
			out[d] = target
		}
	}
	return out
}

// LegalDirections returns the legal directions from pos in the fixed Directions order
func (u *Universe) LegalDirections(pos Position) []Direction {
	moves := u.LegalMoves(pos)
	out := make([]Direction, 0, len(moves))
	for _, d := range Directions {
		if _, ok := moves[d]; ok {
			out = append(out, d)
		}
	}
	return out
}

// ApplyMove moves a bot and resolves eating, destruction and the end of the
// game. On error the universe is unchanged.
func (u *Universe) ApplyMove(botIndex int, dir Direction) (EventList, error) {
	if botIndex < 0 || botIndex >= len(u.Bots) {
		return nil, &IllegalMoveError{Bot: botIndex, Direction: dir, Reason: "no such bot"}
	}
	bot := &u.Bots[botIndex]
	from := bot.CurrentPos
	if !dir.Valid() {
		return nil, &IllegalMoveError{Bot: botIndex, Direction: dir, From: from, Reason: "unknown direction"}
	}
	to, ok := u.LegalMoves(from)[dir]
	if !ok {
		return nil, &IllegalMoveError{Bot: botIndex, Direction: dir, From: from, Reason: "target is a wall or outside the maze"}
	}

	var events EventList
	bot.CurrentPos = to
	events = append(events, BotMoves{Bot: botIndex, From: from, To: to})

	ateLast := false
	if bot.IsHarvester() && u.Grid.Has(to, Food) && !bot.Homezone.Contains(to.X) {
		u.removeFood(to)
		team := &u.Teams[bot.TeamIndex]
		old := team.Score
		team.Score++
		events = append(events,
			BotEats{Bot: botIndex, Pos: to},
			FoodEaten{Pos: to},
			TeamScoreChange{Team: team.Index, OldScore: old, NewScore: team.Score},
		)
		ateLast = len(u.Food) == 0
	}

	events = append(events, u.resolveCollisions(botIndex, from)...)

	if ateLast {
		if winner, ok := u.Leader(); ok {
			events = append(events, TeamWins{Team: winner})
		} else {
			events = append(events, GameDraw{})
		}
	}
	return events, nil
}

// resolveCollisions destroys harvesters sharing the mover's cell with an
// enemy destroyer. The mover is checked first against each other bot.
func (u *Universe) resolveCollisions(moverIndex int, moverFrom Position) EventList {
	var events EventList
	mover := &u.Bots[moverIndex]
	at := mover.CurrentPos
	for i := range u.Bots {
		other := &u.Bots[i]
		if other.Index == moverIndex || other.TeamIndex == mover.TeamIndex || other.CurrentPos != at {
			continue
		}
		switch {
		case mover.IsHarvester() && other.IsDestroyer():
			events = append(events, BotDestroyed{
				Harvester:      mover.Index,
				HarvesterFrom:  moverFrom,
				HarvesterAt:    at,
				HarvesterReset: mover.InitialPos,
				Destroyer:      other.Index,
				DestroyerFrom:  other.CurrentPos,
				DestroyerAt:    other.CurrentPos,
			})
			mover.CurrentPos = mover.InitialPos
			return events
		case mover.IsDestroyer() && other.IsHarvester():
			events = append(events, BotDestroyed{
				Harvester:      other.Index,
				HarvesterFrom:  other.CurrentPos,
				HarvesterAt:    other.CurrentPos,
				HarvesterReset: other.InitialPos,
				Destroyer:      mover.Index,
				DestroyerFrom:  moverFrom,
				DestroyerAt:    at,
			})
			other.CurrentPos = other.InitialPos
		}
	}
	return events
}

func (u *Universe) removeFood(pos Position) {
	u.Grid.Remove(pos, Food)
	for i, p := range u.Food {
		if p == pos {
			u.Food = append(u.Food[:i:i], u.Food[i+1:]...)
			return
		}
	}
}
