package fsops

// FakeDeleter implements Deleter for testing.
// Records every call, returns the error registered for a path in Fail, and
// otherwise delegates to Next (or does nothing when Next is nil).
type FakeDeleter struct {
	Calls []string
	Fail  map[string]error
	Next  Deleter
}

func (f *FakeDeleter) Remove(path string) error {
	f.Calls = append(f.Calls, "rm:"+path)
	if err, ok := f.Fail[path]; ok {
		return err
	}
	if f.Next != nil {
		return f.Next.Remove(path)
	}
	return nil
}

func (f *FakeDeleter) RemoveDir(path string) error {
	f.Calls = append(f.Calls, "rmdir:"+path)
	if err, ok := f.Fail[path]; ok {
		return err
	}
	if f.Next != nil {
		return f.Next.RemoveDir(path)
	}
	return nil
}
