// Package checker runs a handler's validation and preparation steps in
// order, stopping at the first failing one after its error action ran.
package checker

import "github.com/zitadel/logging"

type Checker struct {
	steps []step
}

type step func() bool

func (c *Checker) CheckFailed() bool {
	for _, step := range c.steps {
		if step() {
			return true
		}
	}
	return false
}

func (c *Checker) WithValueNotEmptyCheck(valueName string, value func() string, errorFunc func()) *Checker {
	c.addStep(func() bool {
		if value() == "" {
			logging.Errorf("empty value %s", valueName)
			errorFunc()
			return true
		}
		return false
	})

	return c
}

func (c *Checker) WithConditionalLogicStep(cond func() bool, logic func() error, errorFunc func()) *Checker {
	c.addStep(func() bool {
		if cond() {
			if err := logic(); err != nil {
				logging.Error(err)
				errorFunc()
				return true
			}
		}
		return false
	})

	return c
}

func (c *Checker) WithLogicStep(logic func() error, errorFunc func()) *Checker {
	c.addStep(func() bool {
		if err := logic(); err != nil {
			logging.Error(err)
			errorFunc()
			return true
		}
		return false
	})
	return c
}

func (c *Checker) WithValueStep(logic func()) *Checker {
	c.addStep(func() bool {
		logic()
		return false
	})

	return c
}

func (c *Checker) addStep(f step) {
	c.steps = append(c.steps, f)
}
