package operation

import (
	"anytrack/form"
)

// edit applies fn to a copy of the form and keeps the copy only if fn
// succeeds. Edits are refused while an operation is in flight. When clear is
// set the operation state returns to Idle as well.
func (c *Controller) edit(clear bool, fn func(*form.State) error) error {
	c.mu.Lock()
	if c.busy() {
		c.mu.Unlock()
		return ErrBusy
	}
	next := c.form.Clone()
	if err := fn(&next); err != nil {
		c.mu.Unlock()
		return err
	}
	*c.form = next
	if !clear {
		c.mu.Unlock()
		return nil
	}
	c.resetLocked()
	st := c.commit()
	c.mu.Unlock()
	c.emit(st)
	return nil
}

// SetMode switches the active mode. A real switch discards the previous
// operation, its message, progress and artifact.
func (c *Controller) SetMode(m form.Mode) error {
	if _, ok := kinds[m]; !ok {
		return form.ErrUnknownMode
	}
	c.mu.Lock()
	if c.busy() {
		c.mu.Unlock()
		return ErrBusy
	}
	if c.form.Mode == m {
		c.mu.Unlock()
		return nil
	}
	c.form.Mode = m
	c.resetLocked()
	st := c.commit()
	c.mu.Unlock()
	c.emit(st)
	return nil
}

// SetSource selects a new file; like a mode switch it clears the last result.
func (c *Controller) SetSource(src form.Source) error {
	return c.edit(true, func(s *form.State) error {
		s.Source = src
		return nil
	})
}

func (c *Controller) SetURL(url string) error {
	return c.edit(false, func(s *form.State) error {
		s.SourceURL = url
		return nil
	})
}

func (c *Controller) SetFormat(f form.Format) error {
	return c.edit(false, func(s *form.State) error { return s.SetFormat(f) })
}

func (c *Controller) SetQuality(kbps int) error {
	return c.edit(false, func(s *form.State) error { return s.SetQuality(kbps) })
}

// SetOption updates one advanced option by its wire name.
func (c *Controller) SetOption(name, value string) error {
	return c.edit(false, func(s *form.State) error { return s.Advanced.Set(name, value) })
}

// SetTag updates one metadata field by its wire name.
func (c *Controller) SetTag(name, value string) error {
	return c.edit(false, func(s *form.State) error { return s.Metadata.Set(name, value) })
}

// Update applies several field edits as one: either all of them land or, on
// the first error, none do. The mode and source cannot be changed here.
func (c *Controller) Update(fn func(*form.State) error) error {
	return c.edit(false, func(s *form.State) error {
		mode, src := s.Mode, s.Source
		if err := fn(s); err != nil {
			return err
		}
		s.Mode, s.Source = mode, src
		return nil
	})
}
