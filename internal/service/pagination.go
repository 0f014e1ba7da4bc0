package service

const (
	DefaultPageSize = 20
	pageWindow      = 20
)

type Page struct {
	Number   int
	Size     int
	Total    int64
	Pages    int
	Window   []int
	HasPrev  bool
	HasNext  bool
	PrevPage int
	NextPage int
}

func (p Page) Offset() int {
	return (p.Number - 1) * p.Size
}

// NewPage clamps the requested page into range. Size <= 0 uses DefaultPageSize.
func NewPage(number, size int, total int64) Page {
	if size <= 0 {
		size = DefaultPageSize
	}
	pages := int((total + int64(size) - 1) / int64(size))
	if pages < 1 {
		pages = 1
	}
	if number < 1 {
		number = 1
	}
	if number > pages {
		number = pages
	}
	p := Page{
		Number: number,
		Size:   size,
		Total:  total,
		Pages:  pages,
		Window: PageWindow(number, pages),
	}
	if number > 1 {
		p.HasPrev, p.PrevPage = true, number-1
	}
	if number < pages {
		p.HasNext, p.NextPage = true, number+1
	}
	return p
}

// PageWindow lists page links: all pages when few, otherwise up to ten on
// either side of current.
func PageWindow(current, pages int) []int {
	lo, hi := 1, pages
	if pages+1 > pageWindow {
		lo = current - pageWindow/2
		hi = current + pageWindow/2 - 1
		if lo <= 0 {
			lo = 1
		}
		if hi > pages {
			hi = pages
		}
	}
	out := make([]int, 0, hi-lo+1)
	for n := lo; n <= hi; n++ {
		out = append(out, n)
	}
	return out
}
