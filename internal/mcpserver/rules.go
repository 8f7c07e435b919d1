package mcpserver

// LayoutRules describes how the gallery arranges images, for LLM consumers
// that call pack_layout and visible_rows.
const LayoutRules = `# Mosaic Layout Rules

## Loose mode (justified rows)

1. Images are visited once, in library order. Each image is estimated at the
   target row height: ` + "`estimated = row_height * width / height`" + `.
2. A row is closed when adding the next estimate would make it strictly wider
   than the container. An exact fit stays on the current row.
3. A closed row is scaled so its tiles plus gaps span the container exactly:
   ` + "`height = (width - (n-1)*gap) / sum(aspect)`" + `.
4. The last row keeps its natural width. Its height is the target row height
   unless that would overflow the container.
5. When everything fits on one row, that row is scaled to the container like a
   closed row.
6. Images with a zero or unknown width or height are skipped and listed under
   ` + "`skipped`" + `.

## Grid mode

Every image occupies a square cell. The number of columns is
` + "`max(1, floor((width + gap) / (cell + gap)))`" + `.

## Virtualized rendering

Only rows intersecting the viewport are drawn. For fixed-height rows the
window is ` + "`[floor(scroll / row_height), ceil((scroll + viewport) / row_height))`" + `,
clamped to the row count. Clients render rows with index ` + "`start <= i < end`" + `.

## Assets

Each image is fetched from ` + "`<asset_base_url>/<path>`" + ` with every path
segment URL-escaped.
`
