package trajectory

// Interpolate returns a batch with num additional states linearly interpolated
// between each pair of consecutive waypoints. Endpoints are preserved; the new
// trajectory length is (Len-1)*(num+1)+1. Used to densify results before
// collision checking.
func Interpolate(b *Batch, num int) *Batch {
	if num <= 0 {
		return b.Clone()
	}
	newLen := (b.Len-1)*(num+1) + 1
	out := &Batch{
		NumTrajs: b.NumTrajs,
		Len:      newLen,
		Dim:      b.Dim,
		data:     make([]float64, b.NumTrajs*newLen*2*b.Dim),
	}
	sd := b.StateDim()
	state := make([]float64, sd)
	for i := 0; i < b.NumTrajs; i++ {
		row := 0
		for t := 0; t < b.Len-1; t++ {
			from := b.State(i, t)
			to := b.State(i, t+1)
			for k := 0; k <= num; k++ {
				w := float64(k) / float64(num+1)
				for d := 0; d < sd; d++ {
					state[d] = from[d]*(1-w) + to[d]*w
				}
				out.SetState(i, row, state)
				row++
			}
		}
		out.SetState(i, row, b.State(i, b.Len-1))
	}
	return out
}
