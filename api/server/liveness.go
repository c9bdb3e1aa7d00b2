// liveness.go - Liveness probe logic
package server

// NodeLiveness returns true once the chain holds its genesis block.
func (s *Server) NodeLiveness() bool {
	return s.chain.Len() > 0
}
