package maestro

import "context"

// sequentialConductor runs agents one after another, piping each step's
// output into the next step's input. Order is the caller-declared id
// list, or registration order when none was given.
type sequentialConductor struct {
	base
	order     []string
	transform TransformFunc
}

func (c *sequentialConductor) Orchestrate(ctx context.Context, o *Orchestration) (string, error) {
	roles, err := c.selectRoles(o, c.order)
	if err != nil {
		return "", err
	}
	if len(roles) == 0 {
		return "", Errf(ErrMissingRequired, "sequential: ensemble has no agents")
	}

	input := o.Input()
	response := ""
	for i, role := range roles {
		res, err := c.stepRetry(ctx, o, role, input)
		if err != nil {
			if c.errorMode == ErrorModeContinue && KindOf(err) != ErrCancelled {
				c.logger.Warn("sequential step failed, continuing", "agent", role.ID, "error", err)
				continue
			}
			return "", err
		}

		response = res.Response
		input = res.Response
		if c.transform != nil && i < len(roles)-1 {
			input = c.transform(res.Response, roles[i+1])
		}
	}
	return response, nil
}
