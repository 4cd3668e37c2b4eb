package retry

import "context"

// PageFunc fetches the page identified by token. It returns the page's items
// and the token of the next page, which is empty on the last page.
type PageFunc[T any] func(ctx context.Context, token string) (items []T, next string, err error)

// Paginate fetches every page, retrying each page fetch with a single retry
// policy instance shared by the whole listing. A terminal failure on any page
// discards the items gathered so far and returns only the error.
func Paginate[T any](ctx context.Context, exec *Executor, name string, fetch PageFunc[T], opts ...CallOption) ([]T, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if exec == nil {
		exec = DefaultExecutor()
	}

	r := exec.start(ctx, name, opts)

	var all []T
	token := ""
	pages := 0
	for {
		var items []T
		var next string
		err := r.call(ctx, func(ctx context.Context) error {
			it, nx, err := fetch(ctx, token)
			if err != nil {
				return err
			}
			items, next = it, nx
			return nil
		})
		if err != nil {
			r.setPages(pages)
			r.finish(ctx, err)
			return nil, err
		}
		pages++
		all = append(all, items...)
		if next == "" {
			break
		}
		token = next
	}

	r.setPages(pages)
	r.finish(ctx, nil)
	return all, nil
}
